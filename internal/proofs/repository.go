package proofs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brickmill/storefront-backend/pkg/db/models"
	"github.com/brickmill/storefront-backend/pkg/enums"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
)

// Repository owns payment proof rows and the proofless-order queries built on
// top of them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, proof *models.PaymentProof) (*models.PaymentProof, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentProof, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentProof, error)
	// CountProoflessOrders counts a customer's pending orders with no proof
	// attached yet.
	CountProoflessOrders(ctx context.Context, email string) (int64, error)
	ListProoflessOrders(ctx context.Context, email string, limit int) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, proof *models.PaymentProof) (*models.PaymentProof, error) {
	if proof.ID == uuid.Nil {
		proof.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(proof).Error; err != nil {
		return nil, err
	}
	return proof, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentProof, error) {
	var proof models.PaymentProof
	if err := r.db.WithContext(ctx).First(&proof, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment proof not found")
		}
		return nil, err
	}
	return &proof, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentProof, error) {
	var rows []models.PaymentProof
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) CountProoflessOrders(ctx context.Context, email string) (int64, error) {
	var count int64
	err := r.prooflessQuery(ctx, email).Count(&count).Error
	return count, err
}

func (r *repository) ListProoflessOrders(ctx context.Context, email string, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Order
	err := r.prooflessQuery(ctx, email).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) prooflessQuery(ctx context.Context, email string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("customer_email = ? AND status = ?", email, enums.OrderStatusPending).
		Where("NOT EXISTS (SELECT 1 FROM payment_proofs WHERE payment_proofs.order_id = orders.id)")
}
