package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientStockError(t *testing.T) {
	err := &InsufficientStockError{
		ProductID:   3,
		ProductName: "Widget",
		Available:   2,
		Requested:   5,
	}

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Widget")
	assert.Contains(t, err.Error(), "available=2")
	assert.Contains(t, err.Error(), "requested=5")

	wrapped := fmt.Errorf("add to cart: %w", err)
	assert.ErrorIs(t, wrapped, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(wrapped, &stockErr))
	assert.Equal(t, int64(3), stockErr.ProductID)
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pq.Error{Code: "23505"}
	assert.True(t, IsUniqueViolation(unique))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", unique)))

	fk := &pq.Error{Code: "23503"}
	assert.False(t, IsUniqueViolation(fk))
	assert.False(t, IsUniqueViolation(errors.New("plain error")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestWrapConflict(t *testing.T) {
	unique := &pq.Error{Code: "23505"}
	err := wrapConflict(unique, "sku already exists")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "sku already exists")

	other := errors.New("connection refused")
	assert.Equal(t, other, wrapConflict(other, "sku already exists"))
}
