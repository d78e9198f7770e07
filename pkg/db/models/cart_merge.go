package models

import (
	"time"

	"github.com/google/uuid"
)

// CartMerge records one completed merge of an anonymous cart into an
// identified one. The unique (old_cart_id, new_cart_id) pair makes repeated
// merge calls for the same token rotation a no-op instead of a double-sum.
type CartMerge struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OldCartID uuid.UUID `gorm:"column:old_cart_id;type:uuid;not null;uniqueIndex:ux_cart_merges_pair"`
	NewCartID uuid.UUID `gorm:"column:new_cart_id;type:uuid;not null;uniqueIndex:ux_cart_merges_pair"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
