package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/shkarik/ordering/pkg/models"
)

const (
	chefFeedLimit    = 50
	courierFeedLimit = 20
)

// Store is everything the HTTP surface needs from the order store. Status
// writes go through UpdateStatus only; its expect list makes the write
// conditional so concurrent writers resolve first-writer-wins.
type Store interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	OrderByPublicCode(ctx context.Context, publicCode string) (*models.Order, error)
	OrderBySecretCode(ctx context.Context, secretCode string) (*models.Order, error)

	// ActiveOrders is the chef feed: new and cooking orders, newest first.
	ActiveOrders(ctx context.Context) ([]models.Order, error)

	// CourierOrders is the courier feed: delivery orders that are ready, plus
	// any delivering order already accepted by this courier.
	CourierOrders(ctx context.Context, courierCode string) ([]models.Order, error)

	UpdateStatus(ctx context.Context, publicCode string, expect []models.Status, to models.Status, acceptedBy string) error
}

// newPublicCode returns a short shareable code like "#7KQ2".
func newPublicCode() (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate public code: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return "#" + string(buf), nil
}

// newSecretCode returns the customer capability token.
func newSecretCode() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
