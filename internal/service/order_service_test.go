package service

import (
	"strings"
	"testing"

	"shop-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func line(productID int64, price string, qty int) models.CartLine {
	return models.CartLine{
		CartItem:     models.CartItem{ProductID: productID, Quantity: qty},
		ProductPrice: decimal.RequireFromString(price),
	}
}

func TestComputeTotal(t *testing.T) {
	lines := []models.CartLine{
		line(1, "10.00", 2),
		line(2, "15.00", 1),
	}

	total := computeTotal(lines)
	assert.True(t, total.Equal(decimal.RequireFromString("35.00")),
		"expected 35.00, got %s", total)
}

func TestComputeTotalExactDecimals(t *testing.T) {
	// 0.1 * 3 is not representable in binary floats; decimals keep it exact.
	lines := []models.CartLine{
		line(1, "0.10", 3),
		line(2, "19.99", 7),
	}

	total := computeTotal(lines)
	assert.Equal(t, "140.23", total.StringFixed(2))
}

func TestComputeTotalEmpty(t *testing.T) {
	assert.True(t, computeTotal(nil).IsZero())
}

func TestGenerateOrderNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := generateOrderNumber()
		assert.True(t, strings.HasPrefix(n, "ORD-"), "unexpected prefix: %s", n)
		assert.Len(t, n, len("ORD-")+8)
		assert.False(t, seen[n], "duplicate order number: %s", n)
		seen[n] = true
	}
}
