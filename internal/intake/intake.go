package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/shkarik/ordering/internal/cart"
	"github.com/shkarik/ordering/pkg/models"
)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrMissingName    = errors.New("name is required")
	ErrMissingPhone   = errors.New("phone is required")
	ErrInvalidPhone   = errors.New("phone must be a Kyrgyz mobile number")
	ErrMissingAddress = errors.New("address is required for delivery")
	ErrSubmitInFlight = errors.New("submission already in flight")
	ErrConnectivity   = errors.New("could not reach the ordering service")
)

// Sender is the creation endpoint as the intake sees it. A transport error
// means the request may not have arrived; a decoded response with
// Success=false carries the server's reason verbatim.
type Sender interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error)
}

// ServerRejection is a creation refused by the server after validation
// passed locally.
type ServerRejection struct {
	Reason string
}

func (e *ServerRejection) Error() string { return e.Reason }

// Form is the checkout form next to the cart.
type Form struct {
	Name          string
	Phone         string
	DeliveryType  models.DeliveryType
	Address       string
	ScheduledTime string
	Comment       string
}

// Intake turns a cart plus form into one creation request. Submission is
// single-flight: while a request is pending every further Submit fails
// immediately, which is what stops double taps from creating two orders.
type Intake struct {
	sender Sender
	cart   *cart.Cart
	logger *logrus.Logger

	mu       sync.Mutex
	inFlight bool
}

func New(sender Sender, c *cart.Cart, logger *logrus.Logger) *Intake {
	return &Intake{sender: sender, cart: c, logger: logger}
}

// Submit validates and sends the order. On success the cart is cleared and
// the secret code for the confirmation view is returned. Validation failures
// never reach the network.
func (i *Intake) Submit(ctx context.Context, form Form) (string, error) {
	req, err := i.validate(form)
	if err != nil {
		return "", err
	}

	i.mu.Lock()
	if i.inFlight {
		i.mu.Unlock()
		return "", ErrSubmitInFlight
	}
	i.inFlight = true
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.inFlight = false
		i.mu.Unlock()
	}()

	resp, err := i.sender.CreateOrder(ctx, *req)
	if err != nil {
		i.logger.WithError(err).Warn("Order submission failed to reach the server")
		return "", fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if !resp.Success {
		return "", &ServerRejection{Reason: resp.Error}
	}

	if err := i.cart.Clear(); err != nil {
		// The order exists server-side; a stale local cart is the lesser
		// problem, so report success anyway.
		i.logger.WithError(err).Warn("Failed to clear cart after submission")
	}

	i.logger.WithFields(logrus.Fields{
		"public_code": resp.PublicCode,
		"total_price": resp.TotalPrice,
	}).Info("Order submitted")

	return resp.SecretCode, nil
}

func (i *Intake) validate(form Form) (*models.CreateOrderRequest, error) {
	if i.cart.Empty() {
		return nil, ErrEmptyCart
	}

	name := strings.TrimSpace(form.Name)
	if name == "" {
		return nil, ErrMissingName
	}

	rawPhone := strings.TrimSpace(form.Phone)
	if rawPhone == "" {
		return nil, ErrMissingPhone
	}
	phone, ok := models.NormalizePhone(rawPhone)
	if !ok {
		return nil, ErrInvalidPhone
	}

	address := strings.TrimSpace(form.Address)
	if form.DeliveryType == models.DeliveryDelivery && address == "" {
		return nil, ErrMissingAddress
	}

	return &models.CreateOrderRequest{
		ClientName:    name,
		ClientPhone:   phone,
		DeliveryType:  form.DeliveryType,
		Address:       address,
		ScheduledTime: strings.TrimSpace(form.ScheduledTime),
		Comment:       strings.TrimSpace(form.Comment),
		Cart:          i.cart.Items(),
	}, nil
}
