// Package cart implements the mutable pre-purchase aggregate: line item
// mutations, advisory stock checks and derived-total maintenance. The
// authoritative stock check happens only inside the checkout transaction.
package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/fjod/go_checkout/internal/cache"
	"github.com/fjod/go_checkout/internal/domain"
	"github.com/fjod/go_checkout/internal/repository"
	"golang.org/x/sync/singleflight"
)

// ProductGetter is the catalog boundary the cart needs: current price for
// freezing into a new line, current stock for advisory checks.
type ProductGetter interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type Service struct {
	repo    repository.CartRepository
	catalog ProductGetter
	cache   cache.CartCache
	sfg     singleflight.Group // Prevents cache stampede
}

func NewService(repo repository.CartRepository, catalog ProductGetter, cartCache cache.CartCache) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		cache:   cartCache,
	}
}

// GetCart returns the user's active cart, or a fresh empty one if none has
// been created yet. Carts are created lazily on first AddItem; an empty
// result here is not persisted.
func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cached, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		loaded, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, domain.ErrCartNotFound) {
			return domain.NewCart(userID), nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), userID, loaded); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return loaded, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem appends a line with the product's current price frozen in, or
// merges quantity into an existing line. The stock check here is advisory:
// it keeps obviously hopeless carts out, nothing more.
func (s *Service) AddItem(ctx context.Context, userID string, productID, quantity int64) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, &domain.ValidationError{Field: "quantity", Message: "must be at least 1"}
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	resulting := cart.Quantity(productID) + quantity
	if product.Stock < resulting {
		return nil, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: resulting,
			Available: product.Stock,
		}
	}

	cart.AddLine(productID, quantity, product.Price)
	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		return nil, err
	}

	s.invalidateCache(userID)
	return cart, nil
}

// UpdateItem replaces a line's quantity after an advisory stock re-check.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID string, quantity int64) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, &domain.ValidationError{Field: "quantity", Message: "must be at least 1"}
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, ok := cart.ItemByID(itemID)
	if !ok {
		return nil, domain.ErrItemNotFound
	}

	product, err := s.catalog.GetProduct(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if product.Stock < quantity {
		return nil, &domain.InsufficientStockError{
			ProductID: item.ProductID,
			Requested: quantity,
			Available: product.Stock,
		}
	}

	if err := cart.UpdateLine(itemID, quantity); err != nil {
		return nil, err
	}
	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		return nil, err
	}

	s.invalidateCache(userID)
	return cart, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := cart.RemoveLine(itemID); err != nil {
		return nil, err
	}
	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		return nil, err
	}

	s.invalidateCache(userID)
	return cart, nil
}

// Clear empties the cart. Clearing a cart that was never created is a
// no-op returning an empty cart, matching lazy creation.
func (s *Service) Clear(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		return nil, err
	}

	cart.Clear()
	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		return nil, err
	}

	s.invalidateCache(userID)
	return cart, nil
}

func (s *Service) loadOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
