package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brickmill/storefront-backend/pkg/enums"
)

// Order is the immutable snapshot taken from a cart at checkout commit.
// Items and totals are frozen at creation; only Status moves afterwards.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Reference     string            `gorm:"column:reference;index:ix_orders_reference;not null"`
	CustomerEmail string            `gorm:"column:customer_email;not null"`
	CartID        *uuid.UUID        `gorm:"column:cart_id;type:uuid"`
	Status        enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	TotalCents    int               `gorm:"column:total_cents;not null"`
	Currency      enums.Currency    `gorm:"column:currency;not null"`
	PaidAt        *time.Time        `gorm:"column:paid_at"`
	Items         []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
