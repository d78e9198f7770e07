// Package proofs tracks manually-uploaded payment evidence for orders paid
// outside the gateway (bank transfer, mobile money, cash). Uploading a proof
// never settles anything; a staff member marks the order paid after review.
package proofs

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brickmill/storefront-backend/internal/cart"
	"github.com/brickmill/storefront-backend/internal/checkout"
	"github.com/brickmill/storefront-backend/internal/customers"
	"github.com/brickmill/storefront-backend/pkg/db/models"
	"github.com/brickmill/storefront-backend/pkg/enums"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
	"github.com/brickmill/storefront-backend/pkg/logger"
	"github.com/brickmill/storefront-backend/pkg/outbox"
	"github.com/brickmill/storefront-backend/pkg/outbox/payloads"
)

const proofReadTTL = 7 * 24 * time.Hour

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// objectStore is the slice of the GCS client this service needs.
type objectStore interface {
	DefaultBucket() string
	UploadObject(ctx context.Context, bucket, object, contentType string, body io.Reader) error
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

// SubmitParams carries one proof upload.
type SubmitParams struct {
	OrderID     uuid.UUID
	Method      enums.PaymentMethod
	ContentType string
	SizeBytes   int64
	File        io.Reader
	Note        *string
}

type Service interface {
	// Submit validates and stores a proof image against a pending order and
	// queues an ops notification.
	Submit(ctx context.Context, params SubmitParams) (*models.PaymentProof, error)
	// PendingCount reports how many of the customer's pending orders still
	// have no proof attached.
	PendingCount(ctx context.Context, email string) (int64, error)
	ListPending(ctx context.Context, email string, limit int) ([]models.Order, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentProof, error)
	// MarkPaid settles an order from a reviewed proof. Privileged: callers
	// must gate this behind staff auth.
	MarkPaid(ctx context.Context, orderID uuid.UUID, method enums.PaymentMethod, markedBy string) (*models.Order, error)
}

type service struct {
	proofs      Repository
	orders      checkout.Repository
	carts       cart.Repository
	store       objectStore
	events      *outbox.Service
	tx          txRunner
	maxUploadMB int
	logg        *logger.Logger
}

type ServiceParams struct {
	ProofRepo         Repository
	OrderRepo         checkout.Repository
	CartRepo          cart.Repository
	ObjectStore       objectStore
	Outbox            *outbox.Service
	TransactionRunner txRunner
	MaxUploadMB       int
	Logger            *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.ProofRepo == nil {
		return nil, fmt.Errorf("proof repository is required")
	}
	if params.OrderRepo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if params.ObjectStore == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if params.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}
	return &service{
		proofs:      params.ProofRepo,
		orders:      params.OrderRepo,
		carts:       params.CartRepo,
		store:       params.ObjectStore,
		events:      params.Outbox,
		tx:          params.TransactionRunner,
		maxUploadMB: params.MaxUploadMB,
		logg:        params.Logger,
	}, nil
}

func (s *service) Submit(ctx context.Context, params SubmitParams) (*models.PaymentProof, error) {
	if err := s.validateSubmit(params); err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, params.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order is %s, proof not accepted", order.Status))
	}

	objectPath := fmt.Sprintf("proofs/%s/%s", order.ID, uuid.NewString())
	bucket := s.store.DefaultBucket()

	limited := io.LimitReader(params.File, params.SizeBytes)
	if err := s.store.UploadObject(ctx, bucket, objectPath, params.ContentType, limited); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "uploading proof object")
	}

	proofURL, err := s.store.SignedReadURL(bucket, objectPath, proofReadTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "signing proof url")
	}

	var proof *models.PaymentProof
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.proofs.WithTx(tx).Create(ctx, &models.PaymentProof{
			OrderID:     order.ID,
			Method:      params.Method,
			ObjectPath:  objectPath,
			ProofURL:    proofURL,
			ContentType: params.ContentType,
			SizeBytes:   params.SizeBytes,
			Note:        params.Note,
		})
		if err != nil {
			return err
		}
		proof = created

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProofSubmitted,
			AggregateType: enums.AggregateProof,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{CustomerEmail: order.CustomerEmail, Role: "customer"},
			Version:       1,
			Data: payloads.ProofSubmittedEvent{
				ProofID:     created.ID,
				OrderID:     order.ID,
				Reference:   order.Reference,
				Method:      params.Method,
				SubmittedAt: created.CreatedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{"order_id": order.ID.String(), "proof_id": proof.ID.String()}
		s.logg.Info(s.logg.WithFields(ctx, fields), "payment proof submitted")
	}
	return proof, nil
}

func (s *service) validateSubmit(params SubmitParams) error {
	if params.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if params.File == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "proof file is required")
	}
	if !params.Method.IsValid() || params.Method == enums.PaymentMethodCard {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method must be a manual method")
	}
	if !allowedContentTypes[params.ContentType] {
		return pkgerrors.New(pkgerrors.CodeValidation, "proof must be a jpeg, png, or webp image")
	}
	maxBytes := int64(s.maxUploadMB) << 20
	if params.SizeBytes <= 0 || params.SizeBytes > maxBytes {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("proof file must be between 1 byte and %d MB", s.maxUploadMB))
	}
	return nil
}

func (s *service) PendingCount(ctx context.Context, email string) (int64, error) {
	normalized, err := customers.NormalizeEmail(email)
	if err != nil {
		return 0, err
	}
	return s.proofs.CountProoflessOrders(ctx, normalized)
}

func (s *service) ListPending(ctx context.Context, email string, limit int) ([]models.Order, error) {
	normalized, err := customers.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.proofs.ListProoflessOrders(ctx, normalized, limit)
}

func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentProof, error) {
	return s.proofs.ListByOrder(ctx, orderID)
}

func (s *service) MarkPaid(ctx context.Context, orderID uuid.UUID, method enums.PaymentMethod, markedBy string) (*models.Order, error) {
	if markedBy == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "marked_by is required")
	}
	if !method.IsValid() || method == enums.PaymentMethodCard {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method must be a manual method")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindByID(ctx, orderID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		did, err := s.orders.WithTx(tx).MarkPaid(ctx, order.ID, now)
		if err != nil {
			return err
		}
		if !did {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order is %s, cannot mark paid", order.Status))
		}

		if order.CartID != nil {
			carts := s.carts.WithTx(tx)
			if err := carts.ClearItems(ctx, *order.CartID); err != nil {
				return err
			}
			if err := carts.MarkConverted(ctx, *order.CartID, now); err != nil {
				return err
			}
		}

		return s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderMarkedPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{CustomerEmail: markedBy, Role: "staff"},
			Version:       1,
			OccurredAt:    now,
			Data: payloads.OrderMarkedPaidEvent{
				OrderID:   order.ID,
				Reference: order.Reference,
				Method:    method,
				MarkedBy:  markedBy,
				MarkedAt:  now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.orders.FindByID(ctx, orderID)
}
