package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brickmill/storefront-backend/pkg/enums"
)

// PaymentProof is a customer-submitted receipt for a manual payment
// method, reviewed by staff before the order is marked paid.
type PaymentProof struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Method      enums.PaymentMethod `gorm:"column:method;not null"`
	ObjectPath  string              `gorm:"column:object_path;not null"`
	ProofURL    string              `gorm:"column:proof_url;not null"`
	ContentType string              `gorm:"column:content_type;not null"`
	SizeBytes   int64               `gorm:"column:size_bytes;not null"`
	Note        *string             `gorm:"column:note"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}
