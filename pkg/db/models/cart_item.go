package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brickmill/storefront-backend/pkg/enums"
)

// CartItem holds one product line inside a cart. The unit price is a snapshot
// taken when the row is first inserted; it is never live-repriced afterwards.
// (cart_id, product_id) is unique so concurrent adds collapse into one row.
type CartItem struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID      `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_product"`
	ProductID      uuid.UUID      `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_product"`
	Quantity       int            `gorm:"column:quantity;not null"`
	UnitPriceCents int            `gorm:"column:unit_price_cents;not null"`
	Currency       enums.Currency `gorm:"column:currency;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
