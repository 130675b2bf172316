package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")

	ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

	// ErrTransactionAborted surfaces after the bounded retry loop gives up
	// on transient storage conflicts. The caller may retry the request.
	ErrTransactionAborted = errors.New("checkout transaction aborted")

	ErrIllegalTransition = errors.New("illegal order status transition")
)

// InsufficientStockError names the first product (in deterministic order)
// whose stock cannot cover the requested quantity.
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ValidationError is a field-attributed input rejection.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}
