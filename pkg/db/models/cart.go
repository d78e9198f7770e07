package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brickmill/storefront-backend/pkg/enums"
)

// Cart is the mutable basket keyed by an opaque browser token.
type Cart struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Token         string           `gorm:"column:token;uniqueIndex;not null"`
	CustomerEmail *string          `gorm:"column:customer_email"`
	Status        enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	ConvertedAt   *time.Time       `gorm:"column:converted_at"`
	Items         []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
