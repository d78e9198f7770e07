package cart

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickmill/storefront-backend/pkg/db/models"
	"github.com/brickmill/storefront-backend/pkg/enums"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
)

func line(qty, priceCents int, currency enums.Currency) models.CartItem {
	return models.CartItem{
		ID:             uuid.New(),
		ProductID:      uuid.New(),
		Quantity:       qty,
		UnitPriceCents: priceCents,
		Currency:       currency,
	}
}

func TestComputeTotalsSumsLines(t *testing.T) {
	t.Parallel()

	items := []models.CartItem{
		line(2, 1500, enums.CurrencyUSD),
		line(1, 250, enums.CurrencyUSD),
		line(3, 999, enums.CurrencyUSD),
	}

	totals, err := ComputeTotals(items)
	require.NoError(t, err)
	assert.Equal(t, 2*1500+250+3*999, totals.TotalCents)
	assert.Equal(t, totals.SubtotalCents, totals.TotalCents)
	assert.Equal(t, enums.CurrencyUSD, totals.Currency)
	assert.Equal(t, 6, totals.ItemCount)
	assert.Equal(t, "62.47", totals.Display)
}

func TestComputeTotalsEmptyCart(t *testing.T) {
	t.Parallel()

	totals, err := ComputeTotals(nil)
	require.NoError(t, err)
	assert.Zero(t, totals.TotalCents)
	assert.Zero(t, totals.ItemCount)
}

func TestComputeTotalsOrderIndependent(t *testing.T) {
	t.Parallel()

	items := []models.CartItem{
		line(1, 100, enums.CurrencyEUR),
		line(4, 775, enums.CurrencyEUR),
		line(2, 1250, enums.CurrencyEUR),
		line(7, 33, enums.CurrencyEUR),
	}

	want, err := ComputeTotals(items)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.CartItem, len(items))
		copy(shuffled, items)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got, err := ComputeTotals(shuffled)
		require.NoError(t, err)
		assert.Equal(t, want.TotalCents, got.TotalCents)
		assert.Equal(t, want.ItemCount, got.ItemCount)
	}
}

func TestComputeTotalsRejectsMixedCurrencies(t *testing.T) {
	t.Parallel()

	items := []models.CartItem{
		line(1, 100, enums.CurrencyUSD),
		line(1, 100, enums.CurrencyGBP),
	}

	_, err := ComputeTotals(items)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestComputeTotalsRejectsInvalidLines(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		items []models.CartItem
	}{
		{"zero quantity", []models.CartItem{line(0, 100, enums.CurrencyUSD)}},
		{"negative quantity", []models.CartItem{line(-2, 100, enums.CurrencyUSD)}},
		{"negative price", []models.CartItem{line(1, -5, enums.CurrencyUSD)}},
		{"unknown currency", []models.CartItem{line(1, 100, enums.Currency("XXX"))}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeTotals(tc.items)
			require.Error(t, err)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestFormatCents(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0.00", FormatCents(0))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "12.30", FormatCents(1230))
	assert.Equal(t, "1000.99", FormatCents(100099))
}
