package domain

import (
	"time"

	"github.com/fjod/go_checkout/internal/money"
	"github.com/google/uuid"
)

type CartStatus string

const CartStatusActive CartStatus = "active"

// CartItem is one line of a cart. Price is the product's unit price frozen
// at the time the line was added; later catalog repricing does not touch it.
type CartItem struct {
	ID        string      `bson:"item_id" json:"id"`
	ProductID int64       `bson:"product_id" json:"product_id"`
	Quantity  int64       `bson:"quantity" json:"quantity"`
	Price     money.Cents `bson:"price_cents" json:"price_cents"`
	AddedAt   time.Time   `bson:"added_at" json:"added_at"`
}

// Cart is the mutable pre-purchase container, one active cart per user.
// Total is always derived from the lines, never settable; every mutating
// method recomputes it. Carts are emptied, never deleted.
type Cart struct {
	ID        string      `bson:"_id,omitempty" json:"id"`
	UserID    string      `bson:"user_id" json:"user_id"`
	Status    CartStatus  `bson:"status" json:"status"`
	Items     []CartItem  `bson:"items" json:"items"`
	Total     money.Cents `bson:"total_cents" json:"total_cents"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time   `bson:"updated_at" json:"updated_at"`
}

func NewCart(userID string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    CartStatusActive,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ItemByID returns the line with the given id, or false on a miss.
func (c *Cart) ItemByID(itemID string) (*CartItem, bool) {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// Quantity returns the quantity currently held for a product across the
// cart, zero when the product is not in the cart.
func (c *Cart) Quantity(productID int64) int64 {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return c.Items[i].Quantity
		}
	}
	return 0
}

// AddLine merges the quantity into an existing line for the product, or
// appends a new line carrying the given frozen unit price.
func (c *Cart) AddLine(productID, quantity int64, price money.Cents) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			c.recalculate()
			return
		}
	}
	c.Items = append(c.Items, CartItem{
		ID:        uuid.New().String(),
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
		AddedAt:   time.Now().UTC(),
	})
	c.recalculate()
}

// UpdateLine replaces the quantity of an existing line.
func (c *Cart) UpdateLine(itemID string, quantity int64) error {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].Quantity = quantity
			c.recalculate()
			return nil
		}
	}
	return ErrItemNotFound
}

// RemoveLine deletes a line from the cart.
func (c *Cart) RemoveLine(itemID string) error {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.recalculate()
			return nil
		}
	}
	return ErrItemNotFound
}

// Clear empties all lines and resets the total to zero.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.recalculate()
}

// Lines exposes the cart in the Total Calculator's shape.
func (c *Cart) Lines() []money.Line {
	lines := make([]money.Line, len(c.Items))
	for i, item := range c.Items {
		lines[i] = money.Line{UnitPrice: item.Price, Quantity: item.Quantity}
	}
	return lines
}

func (c *Cart) recalculate() {
	c.Total = money.Total(c.Lines())
	c.UpdatedAt = time.Now().UTC()
}
