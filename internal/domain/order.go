package domain

import (
	"time"

	"github.com/fjod/go_checkout/internal/money"
	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransitionTo reports whether the status graph allows from → to.
// shipped, delivered and cancelled are terminal except for the single
// shipped → delivered edge.
func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// ParseOrderStatus validates a client-supplied status value.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return OrderStatus(s), true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// OrderItem is a frozen copy of product state at purchase time. It holds
// values, not references: later product edits never reach it.
type OrderItem struct {
	ProductID    int64       `bson:"product_id" json:"product_id"`
	ProductName  string      `bson:"product_name" json:"product_name"`
	ProductImage string      `bson:"product_image,omitempty" json:"product_image,omitempty"`
	Quantity     int64       `bson:"quantity" json:"quantity"`
	Price        money.Cents `bson:"price_cents" json:"price_cents"`
}

type ShippingAddress struct {
	Address string `bson:"address" json:"address"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	ZipCode string `bson:"zip_code" json:"zip_code"`
	Country string `bson:"country" json:"country"`
}

// Payment is an opaque sub-record; nothing here captures or settles money.
type Payment struct {
	Method        string        `bson:"payment_method" json:"payment_method"`
	Status        PaymentStatus `bson:"status" json:"status"`
	TransactionID string        `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
}

// Order is the immutable purchase record. Total is computed once at
// construction from the frozen items and never recomputed; the only legal
// mutation afterwards is an explicit status transition.
type Order struct {
	ID              string          `bson:"_id" json:"id"`
	UserID          string          `bson:"user_id" json:"user_id"`
	Items           []OrderItem     `bson:"items" json:"items"`
	ShippingAddress ShippingAddress `bson:"shipping_address" json:"shipping_address"`
	Payment         Payment         `bson:"payment" json:"payment"`
	Status          OrderStatus     `bson:"status" json:"status"`
	Total           money.Cents     `bson:"total_cents" json:"total_price"`
	IdempotencyKey  string          `bson:"idempotency_key,omitempty" json:"-"`
	CreatedAt       time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `bson:"updated_at" json:"updated_at"`
}

func NewOrder(userID string, items []OrderItem, addr ShippingAddress, payment Payment) *Order {
	if addr.Country == "" {
		addr.Country = "United States"
	}
	lines := make([]money.Line, len(items))
	for i, item := range items {
		lines[i] = money.Line{UnitPrice: item.Price, Quantity: item.Quantity}
	}
	now := time.Now().UTC()
	return &Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		Items:           items,
		ShippingAddress: addr,
		Payment:         payment,
		Status:          OrderStatusPending,
		Total:           money.Total(lines),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// AdvanceStatus applies one explicit transition, rejecting anything the
// graph does not allow.
func (o *Order) AdvanceStatus(to OrderStatus) error {
	if !CanTransitionTo(o.Status, to) {
		return ErrIllegalTransition
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}
