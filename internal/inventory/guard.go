// Package inventory enforces the stock floor: a batch reservation either
// decrements every demanded product or leaves all stocks untouched.
package inventory

import (
	"context"
	"sort"

	"github.com/fjod/go_checkout/internal/domain"
)

// Demand is one product's share of a batch reservation.
type Demand struct {
	ProductID int64
	Quantity  int64
}

// StockStore decrements a single product's stock, failing with
// domain.ErrProductNotFound or *domain.InsufficientStockError when it
// cannot. The store never commits on its own.
type StockStore interface {
	DecrementStock(ctx context.Context, productID, quantity int64) error
}

// Guard validates and reserves stock for a batch of demands. It is a
// participant in the coordinator's transaction: on any failure the
// enclosing transaction aborts, which is what makes the batch
// all-or-nothing.
type Guard struct {
	store StockStore
}

func NewGuard(store StockStore) *Guard {
	return &Guard{store: store}
}

// Reserve decrements stock for every demand. Demands are merged per
// product and applied in ascending product id order, so two checkouts
// contending on overlapping product sets always take the same lock order.
// The error names the first failing product under that order.
func (g *Guard) Reserve(ctx context.Context, demands []Demand) error {
	for _, d := range demands {
		if d.Quantity < 1 {
			return &domain.ValidationError{Field: "quantity", Message: "must be at least 1"}
		}
	}

	for _, d := range mergeDemands(demands) {
		if err := g.store.DecrementStock(ctx, d.ProductID, d.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func mergeDemands(demands []Demand) []Demand {
	byProduct := make(map[int64]int64, len(demands))
	for _, d := range demands {
		byProduct[d.ProductID] += d.Quantity
	}

	merged := make([]Demand, 0, len(byProduct))
	for id, qty := range byProduct {
		merged = append(merged, Demand{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID < merged[j].ProductID
	})
	return merged
}
