package models

import (
	"time"
)

type Status string

const (
	StatusNew        Status = "new"
	StatusCooking    Status = "cooking"
	StatusReady      Status = "ready"
	StatusDelivering Status = "delivering"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusCooking, StatusReady, StatusDelivering, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type DeliveryType string

const (
	DeliveryPickup   DeliveryType = "pickup"
	DeliveryDelivery DeliveryType = "delivery"
)

// Limits enforced server-side on order creation. Prices are whole soms.
const (
	DeliveryFee   = 50
	MaxItemPrice  = 10000
	MaxItemQty    = 100
	MaxCartLines  = 50
	MaxOrderTotal = 100000
)

type Order struct {
	PublicCode    string       `json:"public_code"`
	SecretCode    string       `json:"secret_code,omitempty"`
	ClientName    string       `json:"client_name"`
	ClientPhone   string       `json:"client_phone"`
	DeliveryType  DeliveryType `json:"delivery_type"`
	Address       string       `json:"address"`
	ScheduledTime string       `json:"scheduled_time"`
	Comment       string       `json:"comment"`
	Items         []OrderItem  `json:"items"`
	TotalPrice    int          `json:"total_price"`
	Status        Status       `json:"status"`
	AcceptedBy    string       `json:"accepted_by,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type OrderItem struct {
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Quantity int    `json:"qty"`
}

func (i OrderItem) LineTotal() int {
	return i.Price * i.Quantity
}

// OrderSummary is the feed shape read by the role views. The chef feed
// carries items, the courier feed carries address and phone instead.
type OrderSummary struct {
	PublicCode    string       `json:"public_code"`
	ClientName    string       `json:"client_name"`
	ClientPhone   string       `json:"client_phone,omitempty"`
	DeliveryType  DeliveryType `json:"delivery_type"`
	Address       string       `json:"address,omitempty"`
	ScheduledTime string       `json:"scheduled_time"`
	Comment       string       `json:"comment"`
	Items         []OrderItem  `json:"items,omitempty"`
	TotalPrice    int          `json:"total_price"`
	Status        Status       `json:"status"`
}

// CartItem is a client-local cart line; Image is carried through to the
// creation request untouched.
type CartItem struct {
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
	Image    string `json:"image,omitempty"`
}

func (i CartItem) LineTotal() int {
	return i.Price * i.Quantity
}

type CreateOrderRequest struct {
	ClientName    string       `json:"client_name"`
	ClientPhone   string       `json:"client_phone"`
	DeliveryType  DeliveryType `json:"delivery_type"`
	Address       string       `json:"address"`
	ScheduledTime string       `json:"scheduled_time"`
	Comment       string       `json:"comment"`
	Cart          []CartItem   `json:"cart"`
}

type CreateOrderResponse struct {
	Success    bool   `json:"success"`
	PublicCode string `json:"public_code,omitempty"`
	SecretCode string `json:"secret_code,omitempty"`
	TotalPrice int    `json:"total_price,omitempty"`
	Error      string `json:"error,omitempty"`
}

type UpdateStatusRequest struct {
	PublicCode string `json:"public_code"`
	Status     Status `json:"status"`
	AcceptedBy string `json:"accepted_by,omitempty"`
}

type CancelOrderRequest struct {
	SecretCode string `json:"secret_code"`
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type OrdersResponse struct {
	Orders []OrderSummary `json:"orders"`
}

type LoginRequest struct {
	Code string `json:"code"`
}
