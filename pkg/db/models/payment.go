package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brickmill/storefront-backend/pkg/enums"
)

// Payment tracks one provider checkout session for an order.
type Payment struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	Provider          enums.PaymentProvider `gorm:"column:provider;not null"`
	ProviderSessionID string                `gorm:"column:provider_session_id;uniqueIndex:ux_payments_provider_session;not null"`
	AmountCents       int                   `gorm:"column:amount_cents;not null"`
	Currency          enums.Currency        `gorm:"column:currency;not null"`
	Status            enums.PaymentStatus   `gorm:"column:status;type:payment_status;not null;default:'created'"`
	FailureReason     *string               `gorm:"column:failure_reason"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
