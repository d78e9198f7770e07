package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/brickmill/storefront-backend/pkg/enums"
)

// OrderCreatedEvent signals a cart was committed into an order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID      `json:"order_id"`
	Reference     string         `json:"reference"`
	CartID        uuid.UUID      `json:"cart_id"`
	CustomerEmail string         `json:"customer_email"`
	TotalCents    int            `json:"total_cents"`
	Currency      enums.Currency `json:"currency"`
	ItemCount     int            `json:"item_count"`
}

// OrderPaidEvent is emitted once payment settles for an order.
type OrderPaidEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	Reference     string              `json:"reference"`
	CustomerEmail string              `json:"customer_email"`
	AmountCents   int                 `json:"amount_cents"`
	Currency      enums.Currency      `json:"currency"`
	Method        enums.PaymentMethod `json:"method"`
	PaidAt        time.Time           `json:"paid_at"`
}

// OrderCancelledEvent is emitted when an order is cancelled before settlement.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	Reference   string    `json:"reference"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// PaymentFailedEvent reports a provider-side payment failure.
type PaymentFailedEvent struct {
	OrderID           uuid.UUID      `json:"order_id"`
	PaymentID         uuid.UUID      `json:"payment_id"`
	ProviderSessionID string         `json:"provider_session_id"`
	AmountCents       int            `json:"amount_cents"`
	Currency          enums.Currency `json:"currency"`
	Reason            string         `json:"reason,omitempty"`
}

// CartConvertedEvent marks the cart as consumed by checkout.
type CartConvertedEvent struct {
	CartID      uuid.UUID `json:"cart_id"`
	OrderID     uuid.UUID `json:"order_id"`
	ConvertedAt time.Time `json:"converted_at"`
}

// ProofSubmittedEvent tells ops a manual payment receipt is waiting for review.
type ProofSubmittedEvent struct {
	ProofID     uuid.UUID           `json:"proof_id"`
	OrderID     uuid.UUID           `json:"order_id"`
	Reference   string              `json:"reference"`
	Method      enums.PaymentMethod `json:"method"`
	SubmittedAt time.Time           `json:"submitted_at"`
}

// OrderMarkedPaidEvent records a staff member settling an order manually.
type OrderMarkedPaidEvent struct {
	OrderID   uuid.UUID           `json:"order_id"`
	Reference string              `json:"reference"`
	Method    enums.PaymentMethod `json:"method"`
	MarkedBy  string              `json:"marked_by"`
	MarkedAt  time.Time           `json:"marked_at"`
}
