package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shkarik/ordering/internal/lifecycle"
	"github.com/shkarik/ordering/pkg/models"
)

// Memory is an in-process Store used by tests and dev runs. Semantics match
// the Postgres adapter, including the conditional status write.
type Memory struct {
	mu       sync.Mutex
	byPublic map[string]*models.Order
	bySecret map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		byPublic: make(map[string]*models.Order),
		bySecret: make(map[string]string),
	}
}

func (m *Memory) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for attempt := 0; attempt < codeRetries; attempt++ {
		publicCode, err := newPublicCode()
		if err != nil {
			return err
		}
		if _, taken := m.byPublic[publicCode]; taken {
			continue
		}
		secretCode, err := newSecretCode()
		if err != nil {
			return err
		}

		order.PublicCode = publicCode
		order.SecretCode = secretCode
		order.CreatedAt = time.Now()

		stored := cloneOrder(order)
		m.byPublic[publicCode] = stored
		m.bySecret[secretCode] = publicCode
		return nil
	}
	return fmt.Errorf("order code collision persisted")
}

func (m *Memory) OrderByPublicCode(ctx context.Context, publicCode string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.byPublic[publicCode]
	if !ok {
		return nil, lifecycle.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (m *Memory) OrderBySecretCode(ctx context.Context, secretCode string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	publicCode, ok := m.bySecret[secretCode]
	if !ok {
		return nil, lifecycle.ErrOrderNotFound
	}
	return cloneOrder(m.byPublic[publicCode]), nil
}

func (m *Memory) ActiveOrders(ctx context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var orders []models.Order
	for _, order := range m.byPublic {
		if order.Status == models.StatusNew || order.Status == models.StatusCooking {
			orders = append(orders, *cloneOrder(order))
		}
	}
	sortNewestFirst(orders)
	if len(orders) > chefFeedLimit {
		orders = orders[:chefFeedLimit]
	}
	return orders, nil
}

func (m *Memory) CourierOrders(ctx context.Context, courierCode string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var orders []models.Order
	for _, order := range m.byPublic {
		if order.DeliveryType != models.DeliveryDelivery {
			continue
		}
		if order.Status == models.StatusReady ||
			(order.Status == models.StatusDelivering && order.AcceptedBy == courierCode) {
			orders = append(orders, *cloneOrder(order))
		}
	}
	sortNewestFirst(orders)
	if len(orders) > courierFeedLimit {
		orders = orders[:courierFeedLimit]
	}
	return orders, nil
}

func (m *Memory) UpdateStatus(ctx context.Context, publicCode string, expect []models.Status, to models.Status, acceptedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.byPublic[publicCode]
	if !ok {
		return lifecycle.ErrOrderNotFound
	}

	matched := false
	for _, s := range expect {
		if order.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return lifecycle.ErrIllegalTransition
	}

	order.Status = to
	if acceptedBy != "" {
		order.AcceptedBy = acceptedBy
	}
	return nil
}

func cloneOrder(order *models.Order) *models.Order {
	clone := *order
	clone.Items = append([]models.OrderItem(nil), order.Items...)
	return &clone
}

func sortNewestFirst(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
