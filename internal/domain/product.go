package domain

import (
	"time"

	"github.com/fjod/go_checkout/internal/money"
)

// Product is a catalog entity. The checkout core reads it and decrements
// its stock; everything else about the catalog is a thin collaborator.
type Product struct {
	ID          int64       `bson:"_id" json:"id"`
	Name        string      `bson:"name" json:"name"`
	Description string      `bson:"description,omitempty" json:"description,omitempty"`
	ImageURL    string      `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Price       money.Cents `bson:"price_cents" json:"price_cents"`
	Category    string      `bson:"category,omitempty" json:"category,omitempty"`
	SKU         string      `bson:"sku,omitempty" json:"sku,omitempty"`
	Stock       int64       `bson:"stock" json:"stock"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `bson:"updated_at" json:"updated_at"`
}
