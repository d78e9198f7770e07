package cart

import (
	"github.com/shopspring/decimal"

	"github.com/brickmill/storefront-backend/pkg/db/models"
	"github.com/brickmill/storefront-backend/pkg/enums"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
)

// Totals is the computed money summary for a set of cart lines.
type Totals struct {
	SubtotalCents int            `json:"subtotal_cents"`
	TotalCents    int            `json:"total_cents"`
	Currency      enums.Currency `json:"currency"`
	ItemCount     int            `json:"item_count"`
	Display       string         `json:"display"`
}

// ComputeTotals sums the lines without touching storage. Line order never
// changes the result. All lines must share one currency; quantities and
// prices must be non-negative, quantities strictly positive.
func ComputeTotals(items []models.CartItem) (*Totals, error) {
	if len(items) == 0 {
		return &Totals{}, nil
	}

	currency := items[0].Currency
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item has invalid currency")
	}

	subtotal := 0
	count := 0
	for _, item := range items {
		if item.Currency != currency {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart mixes currencies")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item quantity must be positive")
		}
		if item.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item price must be non-negative")
		}
		subtotal += item.Quantity * item.UnitPriceCents
		count += item.Quantity
	}

	return &Totals{
		SubtotalCents: subtotal,
		TotalCents:    subtotal,
		Currency:      currency,
		ItemCount:     count,
		Display:       FormatCents(subtotal),
	}, nil
}

// FormatCents renders an integer cent amount as a fixed two-decimal string.
func FormatCents(cents int) string {
	return decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)).StringFixed(2)
}
