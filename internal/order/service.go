// Package order exposes read access to the immutable purchase records and
// the one legal mutation: an explicit status transition.
package order

import (
	"context"
	"log"

	"github.com/fjod/go_checkout/internal/domain"
	"github.com/fjod/go_checkout/internal/repository"
)

type Service struct {
	repo repository.OrderRepository
}

func NewService(repo repository.OrderRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.repo.ListOrders(ctx, userID)
}

// GetOrder is owner-scoped: a user only sees their own orders.
func (s *Service) GetOrder(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	return s.repo.GetOrder(ctx, orderID, userID)
}

// AdvanceStatus moves an order along the status graph. The graph is
// checked here against the current status and enforced again by the
// conditional update, so a concurrent transition cannot slip an illegal
// edge through.
func (s *Service) AdvanceStatus(ctx context.Context, orderID string, to domain.OrderStatus) (*domain.Order, error) {
	current, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransitionTo(current.Status, to) {
		return nil, domain.ErrIllegalTransition
	}

	if err := s.repo.UpdateOrderStatus(ctx, orderID, current.Status, to); err != nil {
		return nil, err
	}

	log.Printf("order %s moved %s -> %s", orderID, current.Status, to)
	return s.repo.GetOrderByID(ctx, orderID)
}
