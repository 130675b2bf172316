package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_checkout/internal/cache"
	"github.com/fjod/go_checkout/internal/domain"
	"github.com/fjod/go_checkout/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	m    sync.RWMutex
	cart *domain.Cart
	err  error
}

func (m *mockRepository) GetCart(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, domain.ErrCartNotFound
	}
	return m.cart, nil
}

func (m *mockRepository) UpsertCart(_ context.Context, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cart = c
	return nil
}

func (m *mockRepository) CreateIndexes(context.Context) error { return nil }

type mockCatalog struct {
	products map[int64]*domain.Product
}

func (m *mockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

type mockCache struct {
	m    sync.RWMutex
	cart *domain.Cart
	err  error
}

func (m *mockCache) Get(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCache) Set(_ context.Context, _ string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = cart
	return m.err
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	return m.err
}

func (m *mockCache) getCart() *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.cart
}

func newTestService(repo *mockRepository, catalog *mockCatalog, c *mockCache) *Service {
	return NewService(repo, catalog, c)
}

func laptopCatalog() *mockCatalog {
	return &mockCatalog{products: map[int64]*domain.Product{
		1: {ID: 1, Name: "Laptop", Price: 129999, Stock: 5},
		2: {ID: 2, Name: "Mouse", Price: 2550, Stock: 10},
	}}
}

func TestGetCart_NoCartYet_ReturnsEmptyCart(t *testing.T) {
	sut := newTestService(&mockRepository{}, laptopCatalog(), &mockCache{})

	cart, err := sut.GetCart(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "123", cart.UserID)
	assert.Empty(t, cart.Items)
	assert.Equal(t, money.Cents(0), cart.Total)
}

func TestGetCart_CacheHit(t *testing.T) {
	cached := domain.NewCart("123")
	cached.AddLine(1, 3, 129999)
	// repo would error if touched
	sut := newTestService(&mockRepository{err: fmt.Errorf("must not be called")},
		laptopCatalog(), &mockCache{cart: cached})

	cart, err := sut.GetCart(context.Background(), "123")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, int64(1), cart.Items[0].ProductID)
}

func TestGetCart_CacheMiss_PopulatesCache(t *testing.T) {
	stored := domain.NewCart("123")
	stored.AddLine(2, 2, 2550)
	mockC := &mockCache{}
	sut := newTestService(&mockRepository{cart: stored}, laptopCatalog(), mockC)

	cart, err := sut.GetCart(context.Background(), "123")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	require.Eventually(t, func() bool {
		return mockC.getCart() != nil
	}, 100*time.Millisecond, 10*time.Millisecond, "cart was not set in cache")
}

func TestGetCart_RepoError(t *testing.T) {
	sut := newTestService(&mockRepository{err: fmt.Errorf("database error")},
		laptopCatalog(), &mockCache{})

	cart, err := sut.GetCart(context.Background(), "123")
	require.ErrorContains(t, err, "database error")
	assert.Nil(t, cart)
}

func TestAddItem_CreatesCartLazily(t *testing.T) {
	repo := &mockRepository{}
	mockC := &mockCache{cart: domain.NewCart("123")}
	sut := newTestService(repo, laptopCatalog(), mockC)

	cart, err := sut.AddItem(context.Background(), "123", 1, 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(1), cart.Items[0].ProductID)
	assert.Equal(t, int64(2), cart.Items[0].Quantity)
	// Current catalog price frozen onto the line.
	assert.Equal(t, money.Cents(129999), cart.Items[0].Price)
	assert.Equal(t, money.Cents(259998), cart.Total)
	assert.NotNil(t, repo.cart, "cart must be persisted")

	require.Eventually(t, func() bool {
		return mockC.getCart() == nil
	}, 100*time.Millisecond, 10*time.Millisecond, "cache was not invalidated")
}

func TestAddItem_ExistingProduct_IncreasesQuantity(t *testing.T) {
	repo := &mockRepository{}
	sut := newTestService(repo, laptopCatalog(), &mockCache{})

	_, err := sut.AddItem(context.Background(), "123", 1, 2)
	require.NoError(t, err)
	cart, err := sut.AddItem(context.Background(), "123", 1, 3)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(5), cart.Items[0].Quantity)
	assert.Equal(t, money.Cents(5*129999), cart.Total)
}

func TestAddItem_AdvisoryStockCheck(t *testing.T) {
	sut := newTestService(&mockRepository{}, laptopCatalog(), &mockCache{})

	// Stock for product 1 is 5; 3 + 3 exceeds it on the second add.
	_, err := sut.AddItem(context.Background(), "123", 1, 3)
	require.NoError(t, err)
	_, err = sut.AddItem(context.Background(), "123", 1, 3)

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(1), stockErr.ProductID)
	assert.Equal(t, int64(6), stockErr.Requested)
	assert.Equal(t, int64(5), stockErr.Available)
}

func TestAddItem_ProductNotFound(t *testing.T) {
	sut := newTestService(&mockRepository{}, laptopCatalog(), &mockCache{})

	_, err := sut.AddItem(context.Background(), "123", 999, 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	sut := newTestService(&mockRepository{}, laptopCatalog(), &mockCache{})

	_, err := sut.AddItem(context.Background(), "123", 1, 0)
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestUpdateItem_Success(t *testing.T) {
	repo := &mockRepository{}
	mockC := &mockCache{cart: domain.NewCart("123")}
	sut := newTestService(repo, laptopCatalog(), mockC)

	cart, err := sut.AddItem(context.Background(), "123", 2, 1)
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	updated, err := sut.UpdateItem(context.Background(), "123", itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), updated.Items[0].Quantity)
	assert.Equal(t, money.Cents(4*2550), updated.Total)

	require.Eventually(t, func() bool {
		return mockC.getCart() == nil
	}, 100*time.Millisecond, 10*time.Millisecond, "cache was not invalidated")
}

func TestUpdateItem_ItemNotFound(t *testing.T) {
	repo := &mockRepository{}
	sut := newTestService(repo, laptopCatalog(), &mockCache{})
	_, err := sut.AddItem(context.Background(), "123", 1, 1)
	require.NoError(t, err)

	_, err = sut.UpdateItem(context.Background(), "123", "nonexistent", 2)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestUpdateItem_CartNotFound(t *testing.T) {
	sut := newTestService(&mockRepository{}, laptopCatalog(), &mockCache{})

	_, err := sut.UpdateItem(context.Background(), "123", "some-item", 2)
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestUpdateItem_AdvisoryStockCheck(t *testing.T) {
	repo := &mockRepository{}
	sut := newTestService(repo, laptopCatalog(), &mockCache{})
	cart, err := sut.AddItem(context.Background(), "123", 1, 1)
	require.NoError(t, err)

	_, err = sut.UpdateItem(context.Background(), "123", cart.Items[0].ID, 6)
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(6), stockErr.Requested)
}

func TestRemoveItem_Success(t *testing.T) {
	repo := &mockRepository{}
	sut := newTestService(repo, laptopCatalog(), &mockCache{})
	cart, err := sut.AddItem(context.Background(), "123", 1, 1)
	require.NoError(t, err)
	_, err = sut.AddItem(context.Background(), "123", 2, 2)
	require.NoError(t, err)

	updated, err := sut.RemoveItem(context.Background(), "123", cart.Items[0].ID)
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, int64(2), updated.Items[0].ProductID)
	assert.Equal(t, money.Cents(2*2550), updated.Total)
}

func TestRemoveItem_ItemNotFound(t *testing.T) {
	repo := &mockRepository{}
	sut := newTestService(repo, laptopCatalog(), &mockCache{})
	_, err := sut.AddItem(context.Background(), "123", 1, 1)
	require.NoError(t, err)

	_, err = sut.RemoveItem(context.Background(), "123", "nonexistent")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestClear_EmptiesCartAndResetsTotal(t *testing.T) {
	repo := &mockRepository{}
	mockC := &mockCache{cart: domain.NewCart("123")}
	sut := newTestService(repo, laptopCatalog(), mockC)
	_, err := sut.AddItem(context.Background(), "123", 1, 2)
	require.NoError(t, err)

	cleared, err := sut.Clear(context.Background(), "123")
	require.NoError(t, err)
	assert.Empty(t, cleared.Items)
	assert.Equal(t, money.Cents(0), cleared.Total)
	assert.Empty(t, repo.cart.Items, "cleared cart must be persisted")

	require.Eventually(t, func() bool {
		return mockC.getCart() == nil
	}, 100*time.Millisecond, 10*time.Millisecond, "cache was not invalidated")
}

func TestClear_NoCartYet(t *testing.T) {
	sut := newTestService(&mockRepository{}, laptopCatalog(), &mockCache{})

	cleared, err := sut.Clear(context.Background(), "123")
	require.NoError(t, err)
	assert.Empty(t, cleared.Items)
}
