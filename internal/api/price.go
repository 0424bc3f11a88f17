package api

import (
	"errors"

	"github.com/shopspring/decimal"
)

// parsePrice parses a decimal price string from a request body. Prices
// travel as strings so no float rounding ever touches money.
func parsePrice(s string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.New("invalid price")
	}
	if price.IsNegative() {
		return decimal.Zero, errors.New("price must not be negative")
	}
	return price, nil
}
