package intake

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/shkarik/ordering/internal/cart"
	"github.com/shkarik/ordering/pkg/models"
)

type mockSender struct {
	mu       sync.Mutex
	calls    int
	resp     *models.CreateOrderResponse
	err      error
	started  chan struct{}
	unblock  chan struct{}
	lastSent models.CreateOrderRequest
}

func (m *mockSender) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	m.mu.Lock()
	m.calls++
	m.lastSent = req
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
		<-m.unblock
	}
	return m.resp, m.err
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func filledCart(t *testing.T) *cart.Cart {
	t.Helper()
	c, err := cart.Load(cart.NewFileStorage(filepath.Join(t.TempDir(), "cart.json")))
	if err != nil {
		t.Fatal(err)
	}
	c.Add(models.CartItem{Name: "Лагман", Price: 250, Quantity: 2})
	return c
}

func validForm() Form {
	return Form{
		Name:         "Айгуль",
		Phone:        "+996700123456",
		DeliveryType: models.DeliveryDelivery,
		Address:      "мкр Восток-5",
	}
}

func TestValidationOrderAndNoNetworkCall(t *testing.T) {
	cases := []struct {
		name    string
		prepare func(t *testing.T) (*cart.Cart, Form)
		wantErr error
	}{
		{
			"empty cart first",
			func(t *testing.T) (*cart.Cart, Form) {
				c, _ := cart.Load(cart.NewFileStorage(filepath.Join(t.TempDir(), "c.json")))
				// Everything else is also wrong, but the cart wins.
				return c, Form{}
			},
			ErrEmptyCart,
		},
		{
			"missing name",
			func(t *testing.T) (*cart.Cart, Form) {
				f := validForm()
				f.Name = "   "
				return filledCart(t), f
			},
			ErrMissingName,
		},
		{
			"missing phone",
			func(t *testing.T) (*cart.Cart, Form) {
				f := validForm()
				f.Phone = ""
				return filledCart(t), f
			},
			ErrMissingPhone,
		},
		{
			"invalid phone",
			func(t *testing.T) (*cart.Cart, Form) {
				f := validForm()
				f.Phone = "996700123456"
				return filledCart(t), f
			},
			ErrInvalidPhone,
		},
		{
			"delivery without address",
			func(t *testing.T) (*cart.Cart, Form) {
				f := validForm()
				f.Address = ""
				return filledCart(t), f
			},
			ErrMissingAddress,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, form := tc.prepare(t)
			sender := &mockSender{}
			in := New(sender, c, testLogger())

			_, err := in.Submit(context.Background(), form)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
			if sender.callCount() != 0 {
				t.Error("validation failure reached the network")
			}
		})
	}
}

func TestPhoneMatrix(t *testing.T) {
	cases := []struct {
		phone string
		valid bool
	}{
		{"+996700123456", true},
		{"0700123456", true},
		{"+996 700 123 456", true},
		{"996700123456", false},
		{"12345", false},
		{"+99670012345", false},
		{"+9967001234567", false},
	}

	for _, tc := range cases {
		sender := &mockSender{resp: &models.CreateOrderResponse{Success: true, SecretCode: "s"}}
		in := New(sender, filledCart(t), testLogger())
		form := validForm()
		form.Phone = tc.phone

		_, err := in.Submit(context.Background(), form)
		if tc.valid && err != nil {
			t.Errorf("%q rejected: %v", tc.phone, err)
		}
		if !tc.valid && !errors.Is(err, ErrInvalidPhone) {
			t.Errorf("%q accepted, want ErrInvalidPhone (got %v)", tc.phone, err)
		}
	}
}

func TestPickupSkipsAddressCheck(t *testing.T) {
	sender := &mockSender{resp: &models.CreateOrderResponse{Success: true, SecretCode: "s"}}
	in := New(sender, filledCart(t), testLogger())

	form := validForm()
	form.DeliveryType = models.DeliveryPickup
	form.Address = ""

	if _, err := in.Submit(context.Background(), form); err != nil {
		t.Fatalf("pickup without address rejected: %v", err)
	}
}

func TestSubmitClearsCartOnSuccess(t *testing.T) {
	c := filledCart(t)
	sender := &mockSender{resp: &models.CreateOrderResponse{Success: true, SecretCode: "secret-1"}}
	in := New(sender, c, testLogger())

	secret, err := in.Submit(context.Background(), validForm())
	if err != nil {
		t.Fatal(err)
	}
	if secret != "secret-1" {
		t.Errorf("secret = %q", secret)
	}
	if !c.Empty() {
		t.Error("cart not cleared after successful submission")
	}
	if sender.lastSent.ClientPhone != "+996700123456" {
		t.Errorf("sent phone = %q", sender.lastSent.ClientPhone)
	}
}

func TestSubmitKeepsCartOnFailure(t *testing.T) {
	c := filledCart(t)
	sender := &mockSender{resp: &models.CreateOrderResponse{Success: false, Error: "Подозрительная цена товара"}}
	in := New(sender, c, testLogger())

	_, err := in.Submit(context.Background(), validForm())
	var rejection *ServerRejection
	if !errors.As(err, &rejection) {
		t.Fatalf("got %v, want ServerRejection", err)
	}
	if rejection.Reason != "Подозрительная цена товара" {
		t.Errorf("reason = %q, want server text verbatim", rejection.Reason)
	}
	if c.Empty() {
		t.Error("cart cleared on server rejection")
	}
}

func TestConnectivityErrorDistinctFromValidation(t *testing.T) {
	c := filledCart(t)
	sender := &mockSender{err: errors.New("dial tcp: connection refused")}
	in := New(sender, c, testLogger())

	_, err := in.Submit(context.Background(), validForm())
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("got %v, want ErrConnectivity", err)
	}
	if c.Empty() {
		t.Error("cart cleared on connectivity failure")
	}

	// The intake is usable again after the failure.
	sender.err = nil
	sender.resp = &models.CreateOrderResponse{Success: true, SecretCode: "s"}
	if _, err := in.Submit(context.Background(), validForm()); err != nil {
		t.Fatalf("resubmission after failure: %v", err)
	}
}

func TestSubmitSingleFlight(t *testing.T) {
	c := filledCart(t)
	sender := &mockSender{
		resp:    &models.CreateOrderResponse{Success: true, SecretCode: "s"},
		started: make(chan struct{}, 1),
		unblock: make(chan struct{}),
	}
	in := New(sender, c, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := in.Submit(context.Background(), validForm())
		done <- err
	}()
	<-sender.started

	// Second tap while the first request is pending.
	_, err := in.Submit(context.Background(), validForm())
	if !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("got %v, want ErrSubmitInFlight", err)
	}

	close(sender.unblock)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if sender.callCount() != 1 {
		t.Errorf("calls = %d, want 1", sender.callCount())
	}
}
