package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Sentinel errors for the storage layer. Handlers map these onto HTTP
// status codes; services wrap them with context using %w.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrAddressNotFound  = errors.New("address not found")
	ErrReviewNotFound   = errors.New("review not found")

	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidTransition = errors.New("invalid order status transition")

	ErrConflict     = errors.New("conflict")
	ErrNotPurchased = errors.New("product was not purchased by this user")
)

// InsufficientStockError names the offending product so callers can render
// a useful message.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available=%d, requested=%d",
		e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (duplicate SKU, duplicate review, duplicate cart line).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// wrapConflict converts unique violations into ErrConflict so callers do
// not have to know about driver error codes.
func wrapConflict(err error, what string) error {
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrConflict, what)
	}
	return err
}
