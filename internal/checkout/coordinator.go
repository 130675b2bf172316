// Package checkout converts a cart into an order inside one storage
// transaction: cart read, stock decrements, order insert and cart clear
// all commit together or not at all.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fjod/go_checkout/internal/domain"
	"github.com/fjod/go_checkout/internal/inventory"
	"github.com/fjod/go_checkout/internal/repository"
)

// EventOrderCreated is appended to the outbox in the checkout transaction.
const EventOrderCreated = "order.created"

type CartStore interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
}

type ProductStore interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type StockGuard interface {
	Reserve(ctx context.Context, demands []inventory.Demand) error
}

type OrderStore interface {
	InsertOrder(ctx context.Context, order *domain.Order) error
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
}

type OutboxStore interface {
	AppendEvent(ctx context.Context, event *repository.OutboxEvent) error
}

// CartCacheInvalidator drops a user's cached cart. The coordinator writes
// the cleared cart past the cart service, so it carries the service's
// invalidate-on-mutation duty for the checkout path itself.
type CartCacheInvalidator interface {
	Delete(ctx context.Context, userID string) error
}

// Request carries the shipping and payment input for a checkout, plus an
// optional client-supplied idempotency key that makes resubmission of the
// same attempt return the original order instead of creating a second one.
type Request struct {
	Address        string
	City           string
	State          string
	ZipCode        string
	PaymentMethod  string
	IdempotencyKey string
}

func (r Request) validate() error {
	for _, f := range []struct{ field, value string }{
		{"address", r.Address},
		{"city", r.City},
		{"state", r.State},
		{"zip_code", r.ZipCode},
		{"payment_method", r.PaymentMethod},
	} {
		if f.value == "" {
			return &domain.ValidationError{Field: f.field, Message: "is required"}
		}
	}
	return nil
}

// Coordinator orchestrates ValidateCart → ReserveStock → BuildOrder →
// ClearCart → Commit. Every collaborator is an explicit handle; the
// transaction scope comes from the injected TxnRunner, never from shared
// process state.
type Coordinator struct {
	txn       repository.TxnRunner
	carts     CartStore
	products  ProductStore
	guard     StockGuard
	orders    OrderStore
	outbox    OutboxStore
	cartCache CartCacheInvalidator
}

func NewCoordinator(
	txn repository.TxnRunner,
	carts CartStore,
	products ProductStore,
	guard StockGuard,
	orders OrderStore,
	outbox OutboxStore,
	cartCache CartCacheInvalidator,
) *Coordinator {
	return &Coordinator{
		txn:       txn,
		carts:     carts,
		products:  products,
		guard:     guard,
		orders:    orders,
		outbox:    outbox,
		cartCache: cartCache,
	}
}

// Checkout runs one checkout attempt for the user's active cart. On any
// failure the cart and all stock counts are exactly as they were before
// the attempt; the transaction boundary is the sole guarantor of that.
func (c *Coordinator) Checkout(ctx context.Context, userID string, req Request) (*domain.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := c.orders.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			log.Printf("duplicate checkout for idempotency key %s, returning order %s", req.IdempotencyKey, existing.ID)
			return existing, nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
	}

	var order *domain.Order
	err := c.txn.WithinTxn(ctx, func(ctx context.Context) error {
		var attemptErr error
		order, attemptErr = c.attempt(ctx, userID, req)
		return attemptErr
	})

	// A concurrent submission of the same key won the race inside the
	// transaction; hand back the order it created.
	if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
		return c.orders.FindByIdempotencyKey(ctx, req.IdempotencyKey)
	}
	if err != nil {
		return nil, err
	}

	// The cleared cart was written past the cart service, so its cached
	// copy is now stale.
	c.invalidateCartCache(userID)

	log.Printf("created order %s for user %s", order.ID, userID)
	return order, nil
}

func (c *Coordinator) invalidateCartCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.cartCache.Delete(ctx, userID); err != nil {
		log.Printf("cart cache invalidate error: %v", err)
	}
}

// attempt executes the state machine inside one transaction scope.
func (c *Coordinator) attempt(ctx context.Context, userID string, req Request) (*domain.Order, error) {
	// ValidateCart
	cart, err := c.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	// Load current product state first: order items freeze name, image
	// and price as they are at purchase time, not at add-to-cart time.
	items := make([]domain.OrderItem, len(cart.Items))
	demands := make([]inventory.Demand, len(cart.Items))
	for i, line := range cart.Items {
		product, err := c.products.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		items[i] = domain.OrderItem{
			ProductID:    product.ID,
			ProductName:  product.Name,
			ProductImage: product.ImageURL,
			Quantity:     line.Quantity,
			Price:        product.Price,
		}
		demands[i] = inventory.Demand{ProductID: line.ProductID, Quantity: line.Quantity}
	}

	// ReserveStock
	if err := c.guard.Reserve(ctx, demands); err != nil {
		return nil, err
	}

	// BuildOrder
	order := domain.NewOrder(userID, items, domain.ShippingAddress{
		Address: req.Address,
		City:    req.City,
		State:   req.State,
		ZipCode: req.ZipCode,
	}, domain.Payment{
		Method: req.PaymentMethod,
		Status: domain.PaymentStatusPending,
	})
	order.IdempotencyKey = req.IdempotencyKey

	if err := c.orders.InsertOrder(ctx, order); err != nil {
		return nil, err
	}
	if err := c.appendCreatedEvent(ctx, order); err != nil {
		return nil, err
	}

	// ClearCart
	cart.Clear()
	if err := c.carts.UpsertCart(ctx, cart); err != nil {
		return nil, err
	}

	return order, nil
}

func (c *Coordinator) appendCreatedEvent(ctx context.Context, order *domain.Order) error {
	payload, err := json.Marshal(map[string]interface{}{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"items":       order.Items,
		"total_price": order.Total,
		"status":      order.Status,
		"created_at":  order.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	return c.outbox.AppendEvent(ctx, repository.NewOutboxEvent(order.ID, EventOrderCreated, payload))
}
