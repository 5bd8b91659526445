package cart

import (
	"fmt"

	"github.com/shkarik/ordering/pkg/models"
)

// Per-line quantity cap applied at add time. A softer guard than the server's
// hard limit, same as the storefront's plus-button cap.
const maxLineQty = 50

// Cart is the client-local pre-order state. Every mutation persists the full
// snapshot, so a page reload (or process restart) picks up where it left off.
type Cart struct {
	storage Storage
	items   []models.CartItem
}

// Load restores the cart from storage; a missing snapshot is an empty cart.
func Load(storage Storage) (*Cart, error) {
	items, err := storage.Load()
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return &Cart{storage: storage, items: items}, nil
}

// Add merges the line into an existing one by product name, or appends it.
func (c *Cart) Add(item models.CartItem) error {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	if item.Quantity > maxLineQty {
		item.Quantity = maxLineQty
	}

	merged := false
	for i := range c.items {
		if c.items[i].Name == item.Name {
			c.items[i].Quantity += item.Quantity
			if c.items[i].Quantity > maxLineQty {
				c.items[i].Quantity = maxLineQty
			}
			merged = true
			break
		}
	}
	if !merged {
		c.items = append(c.items, item)
	}
	return c.persist()
}

// ChangeQuantity adjusts the line at index by delta; a line that drops to
// zero or below is removed outright.
func (c *Cart) ChangeQuantity(index, delta int) error {
	if index < 0 || index >= len(c.items) {
		return fmt.Errorf("cart index %d out of range", index)
	}

	c.items[index].Quantity += delta
	if c.items[index].Quantity <= 0 {
		c.items = append(c.items[:index], c.items[index+1:]...)
	}
	return c.persist()
}

// Remove deletes the line at index unconditionally.
func (c *Cart) Remove(index int) error {
	if index < 0 || index >= len(c.items) {
		return fmt.Errorf("cart index %d out of range", index)
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	return c.persist()
}

// Total sums the line totals, plus the flat delivery fee when delivery is
// selected.
func (c *Cart) Total(deliverySelected bool) int {
	total := 0
	for _, item := range c.items {
		total += item.LineTotal()
	}
	if deliverySelected {
		total += models.DeliveryFee
	}
	return total
}

func (c *Cart) Items() []models.CartItem {
	return append([]models.CartItem(nil), c.items...)
}

func (c *Cart) Empty() bool {
	return len(c.items) == 0
}

func (c *Cart) Clear() error {
	c.items = nil
	return c.persist()
}

func (c *Cart) persist() error {
	if err := c.storage.Save(c.items); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}
