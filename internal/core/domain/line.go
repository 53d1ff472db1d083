package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineEntry is one unit of a menu item added to the cart at the price shown at add time.
type LineEntry struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
}

func NewLineEntry(name string, unitPrice decimal.Decimal) (LineEntry, error) {
	if strings.TrimSpace(name) == "" {
		return LineEntry{}, ErrInvalidItem
	}
	if unitPrice.IsNegative() {
		return LineEntry{}, ErrInvalidItem
	}
	return LineEntry{Name: name, UnitPrice: unitPrice}, nil
}

// Location is a captured latitude/longitude pair.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// CheckConsistentPrices reports ErrPriceConflict when one name appears with two prices.
func CheckConsistentPrices(entries []LineEntry) error {
	seen := make(map[string]decimal.Decimal, len(entries))
	for _, e := range entries {
		if p, ok := seen[e.Name]; ok && !p.Equal(e.UnitPrice) {
			return ErrPriceConflict
		}
		seen[e.Name] = e.UnitPrice
	}
	return nil
}
