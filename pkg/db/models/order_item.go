package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brickmill/storefront-backend/pkg/enums"
)

// OrderItem carries a frozen copy of the product data at checkout time.
// Later catalog edits never touch these rows.
type OrderItem struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID      `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID      `gorm:"column:product_id;type:uuid;not null"`
	Title          string         `gorm:"column:title;not null"`
	Quantity       int            `gorm:"column:quantity;not null"`
	UnitPriceCents int            `gorm:"column:unit_price_cents;not null"`
	Currency       enums.Currency `gorm:"column:currency;not null"`
	LineTotalCents int            `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}
