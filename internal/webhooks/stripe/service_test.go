package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brickmill/storefront-backend/internal/cart"
	"github.com/brickmill/storefront-backend/internal/checkout"
	"github.com/brickmill/storefront-backend/internal/payments"
	"github.com/brickmill/storefront-backend/pkg/carttoken"
	"github.com/brickmill/storefront-backend/pkg/db/models"
	"github.com/brickmill/storefront-backend/pkg/enums"
	"github.com/brickmill/storefront-backend/pkg/outbox"
)

func setupWebhookTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	stmts := []string{`
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  token TEXT NOT NULL UNIQUE,
  customer_email TEXT,
  status TEXT NOT NULL DEFAULT 'active',
  converted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (cart_id, product_id)
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  reference TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  cart_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  total_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  title TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  line_total_cents INTEGER NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  provider_session_id TEXT NOT NULL UNIQUE,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'created',
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  UNIQUE (event_type, aggregate_type, aggregate_id)
);`}

	for _, stmt := range stmts {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type webhookFixture struct {
	svc      *Service
	db       *gorm.DB
	carts    cart.Repository
	orders   checkout.Repository
	payments payments.Repository
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	db := setupWebhookTestDB(t)

	f := &webhookFixture{
		db:       db,
		carts:    cart.NewRepository(db),
		orders:   checkout.NewRepository(db),
		payments: payments.NewRepository(db),
	}
	svc, err := NewService(ServiceParams{
		PaymentRepo:       f.payments,
		OrderRepo:         f.orders,
		CartRepo:          f.carts,
		Outbox:            outbox.NewService(outbox.NewRepository(db), nil),
		TransactionRunner: gormTxRunner{db: db},
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

// seedCheckout builds the state left behind by a full checkout: a cart with
// one item, a pending order referencing it, and a created payment attempt.
func (f *webhookFixture) seedCheckout(t *testing.T, sessionID string) (*models.Order, *models.Payment) {
	t.Helper()
	ctx := context.Background()

	token, err := carttoken.Mint()
	require.NoError(t, err)
	basket, err := f.carts.Create(ctx, &models.Cart{Token: token, Status: enums.CartStatusActive})
	require.NoError(t, err)
	require.NoError(t, f.carts.UpsertItem(ctx, &models.CartItem{
		CartID: basket.ID, ProductID: uuid.New(), Quantity: 2,
		UnitPriceCents: 6000, Currency: enums.CurrencyUSD,
	}))

	ref, err := checkout.MintReference()
	require.NoError(t, err)
	cartID := basket.ID
	order, err := f.orders.Create(ctx, &models.Order{
		Reference:     ref,
		CustomerEmail: "buyer@example.com",
		CartID:        &cartID,
		Status:        enums.OrderStatusPending,
		TotalCents:    12000,
		Currency:      enums.CurrencyUSD,
	})
	require.NoError(t, err)

	payment, err := f.payments.Create(ctx, &models.Payment{
		OrderID:           order.ID,
		Provider:          enums.PaymentProviderStripe,
		ProviderSessionID: sessionID,
		AmountCents:       12000,
		Currency:          enums.CurrencyUSD,
		Status:            enums.PaymentStatusCreated,
	})
	require.NoError(t, err)
	return order, payment
}

func completedEvent(t *testing.T, sessionID string, amount int64) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(&stripe.CheckoutSession{ID: sessionID, AmountTotal: amount})
	require.NoError(t, err)
	return &stripe.Event{
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func (f *webhookFixture) outboxCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", eventType).
		Count(&count).Error)
	return count
}

func TestHandleEventCompletedSettlesEverything(t *testing.T) {
	f := newWebhookFixture(t)
	order, payment := f.seedCheckout(t, "cs_test_settle")
	ctx := context.Background()

	require.NoError(t, f.svc.HandleEvent(ctx, completedEvent(t, "cs_test_settle", 12000)))

	settled, err := f.payments.FindByProviderSessionID(ctx, payment.ProviderSessionID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSucceeded, settled.Status)

	paid, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	converted, err := f.carts.FindByID(ctx, *order.CartID)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusConverted, converted.Status)
	assert.Empty(t, converted.Items)

	assert.EqualValues(t, 1, f.outboxCount(t, enums.EventOrderPaid))
	assert.EqualValues(t, 1, f.outboxCount(t, enums.EventCartConverted))
}

func TestHandleEventDuplicateDeliveryIsHarmless(t *testing.T) {
	f := newWebhookFixture(t)
	order, payment := f.seedCheckout(t, "cs_test_dup")
	ctx := context.Background()

	require.NoError(t, f.svc.HandleEvent(ctx, completedEvent(t, "cs_test_dup", 12000)))

	paidOnce, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	firstPaidAt := *paidOnce.PaidAt

	require.NoError(t, f.svc.HandleEvent(ctx, completedEvent(t, "cs_test_dup", 12000)))

	settled, err := f.payments.FindByProviderSessionID(ctx, payment.ProviderSessionID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSucceeded, settled.Status)

	paidTwice, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paidTwice.Status)
	assert.WithinDuration(t, firstPaidAt, *paidTwice.PaidAt, time.Millisecond)

	converted, err := f.carts.FindByID(ctx, *order.CartID)
	require.NoError(t, err)
	require.NotNil(t, converted.ConvertedAt)

	assert.EqualValues(t, 1, f.outboxCount(t, enums.EventOrderPaid))
	assert.EqualValues(t, 1, f.outboxCount(t, enums.EventCartConverted))
}

func TestHandleEventAmountMismatchMutatesNothing(t *testing.T) {
	f := newWebhookFixture(t)
	order, payment := f.seedCheckout(t, "cs_test_amount")
	ctx := context.Background()

	err := f.svc.HandleEvent(ctx, completedEvent(t, "cs_test_amount", 99))
	require.Error(t, err)

	untouched, err := f.payments.FindByProviderSessionID(ctx, payment.ProviderSessionID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCreated, untouched.Status)

	pending, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, pending.Status)
}

func TestHandleEventExpiredFailsPaymentKeepsOrderPending(t *testing.T) {
	f := newWebhookFixture(t)
	order, payment := f.seedCheckout(t, "cs_test_expired")
	ctx := context.Background()

	raw, err := json.Marshal(&stripe.CheckoutSession{ID: "cs_test_expired"})
	require.NoError(t, err)
	event := &stripe.Event{
		Type: stripe.EventTypeCheckoutSessionExpired,
		Data: &stripe.EventData{Raw: raw},
	}
	require.NoError(t, f.svc.HandleEvent(ctx, event))

	failed, err := f.payments.FindByProviderSessionID(ctx, payment.ProviderSessionID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)

	pending, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, pending.Status)

	assert.EqualValues(t, 1, f.outboxCount(t, enums.EventPaymentFailed))

	// Replay of the expiry changes nothing further.
	require.NoError(t, f.svc.HandleEvent(ctx, event))
	assert.EqualValues(t, 1, f.outboxCount(t, enums.EventPaymentFailed))
}

func TestHandleEventCompletedAfterExpirySettlesPayment(t *testing.T) {
	f := newWebhookFixture(t)
	order, payment := f.seedCheckout(t, "cs_test_late_complete")
	ctx := context.Background()

	raw, err := json.Marshal(&stripe.CheckoutSession{ID: "cs_test_late_complete"})
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleEvent(ctx, &stripe.Event{
		Type: stripe.EventTypeCheckoutSessionExpired,
		Data: &stripe.EventData{Raw: raw},
	}))

	// The completed notification arrives after the expiry; it is
	// authoritative and must re-open the failed attempt.
	require.NoError(t, f.svc.HandleEvent(ctx, completedEvent(t, "cs_test_late_complete", 12000)))

	settled, err := f.payments.FindByProviderSessionID(ctx, payment.ProviderSessionID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSucceeded, settled.Status)
	assert.Nil(t, settled.FailureReason)

	paid, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)

	converted, err := f.carts.FindByID(ctx, *order.CartID)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusConverted, converted.Status)

	assert.EqualValues(t, 1, f.outboxCount(t, enums.EventPaymentFailed))
	assert.EqualValues(t, 1, f.outboxCount(t, enums.EventOrderPaid))
}

func TestHandleEventUnknownCompletedSessionIsAcked(t *testing.T) {
	f := newWebhookFixture(t)

	require.NoError(t, f.svc.HandleEvent(context.Background(), completedEvent(t, "cs_never_created", 500)))

	assert.EqualValues(t, 0, f.outboxCount(t, enums.EventOrderPaid))
}

func TestHandleEventUnknownExpiredSessionIsIgnored(t *testing.T) {
	f := newWebhookFixture(t)

	raw, err := json.Marshal(&stripe.CheckoutSession{ID: "cs_never_seen"})
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleEvent(context.Background(), &stripe.Event{
		Type: stripe.EventTypeCheckoutSessionExpired,
		Data: &stripe.EventData{Raw: raw},
	}))
}

func TestHandleEventIgnoresUnrelatedTypes(t *testing.T) {
	f := newWebhookFixture(t)

	require.NoError(t, f.svc.HandleEvent(context.Background(), &stripe.Event{
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	}))
}
