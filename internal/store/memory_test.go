package store

import (
	"context"
	"testing"

	"github.com/shkarik/ordering/pkg/models"
)

func seed(t *testing.T, m *Memory, deliveryType models.DeliveryType, status models.Status, acceptedBy string) *models.Order {
	t.Helper()
	order := &models.Order{
		ClientName:   "Тест",
		ClientPhone:  "+996700123456",
		DeliveryType: deliveryType,
		Address:      "адрес",
		Items:        []models.OrderItem{{Name: "Плов", Price: 300, Quantity: 1}},
		TotalPrice:   300,
		Status:       models.StatusNew,
	}
	if err := m.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("create: %v", err)
	}
	if status != models.StatusNew {
		if err := m.UpdateStatus(context.Background(), order.PublicCode, []models.Status{models.StatusNew}, status, acceptedBy); err != nil {
			t.Fatalf("seed status: %v", err)
		}
	}
	return order
}

func TestCreateOrderAssignsCodes(t *testing.T) {
	m := NewMemory()
	order := seed(t, m, models.DeliveryPickup, models.StatusNew, "")

	if len(order.PublicCode) != 5 || order.PublicCode[0] != '#' {
		t.Errorf("public code %q does not look like #XXXX", order.PublicCode)
	}
	if order.SecretCode == "" {
		t.Error("secret code not assigned")
	}

	got, err := m.OrderBySecretCode(context.Background(), order.SecretCode)
	if err != nil {
		t.Fatalf("lookup by secret: %v", err)
	}
	if got.PublicCode != order.PublicCode {
		t.Errorf("secret lookup returned %s, want %s", got.PublicCode, order.PublicCode)
	}
}

func TestActiveOrdersFeed(t *testing.T) {
	m := NewMemory()
	seed(t, m, models.DeliveryPickup, models.StatusNew, "")
	seed(t, m, models.DeliveryDelivery, models.StatusCooking, "")
	seed(t, m, models.DeliveryDelivery, models.StatusReady, "")
	seed(t, m, models.DeliveryDelivery, models.StatusCompleted, "")

	orders, err := m.ActiveOrders(context.Background())
	if err != nil {
		t.Fatalf("active orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("len = %d, want 2 (new + cooking only)", len(orders))
	}
	for _, o := range orders {
		if o.Status != models.StatusNew && o.Status != models.StatusCooking {
			t.Errorf("unexpected status %s in chef feed", o.Status)
		}
	}
}

func TestCourierOrdersFeed(t *testing.T) {
	m := NewMemory()
	seed(t, m, models.DeliveryDelivery, models.StatusReady, "")
	mine := seed(t, m, models.DeliveryDelivery, models.StatusDelivering, "c1")
	seed(t, m, models.DeliveryDelivery, models.StatusDelivering, "c2")
	seed(t, m, models.DeliveryPickup, models.StatusReady, "")
	seed(t, m, models.DeliveryDelivery, models.StatusNew, "")

	orders, err := m.CourierOrders(context.Background(), "c1")
	if err != nil {
		t.Fatalf("courier orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("len = %d, want 2 (ready + own delivering)", len(orders))
	}

	foundMine := false
	for _, o := range orders {
		if o.Status == models.StatusDelivering {
			if o.PublicCode != mine.PublicCode {
				t.Errorf("another courier's delivery leaked into the feed")
			}
			foundMine = true
		}
	}
	if !foundMine {
		t.Error("own delivering order missing from feed")
	}
}

func TestUpdateStatusConditional(t *testing.T) {
	m := NewMemory()
	order := seed(t, m, models.DeliveryDelivery, models.StatusReady, "")

	err := m.UpdateStatus(context.Background(), order.PublicCode, []models.Status{models.StatusNew}, models.StatusCooking, "")
	if err == nil {
		t.Fatal("expected conditional update to fail for wrong expected status")
	}

	got, _ := m.OrderByPublicCode(context.Background(), order.PublicCode)
	if got.Status != models.StatusReady {
		t.Errorf("failed update mutated status to %s", got.Status)
	}
}
