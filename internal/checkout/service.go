// Package checkout freezes a cart into an immutable order. Creation is the
// commit point: the order's items and total never change afterwards, no
// matter what happens to the source cart.
package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brickmill/storefront-backend/internal/cart"
	"github.com/brickmill/storefront-backend/internal/customers"
	"github.com/brickmill/storefront-backend/internal/products"
	"github.com/brickmill/storefront-backend/pkg/carttoken"
	"github.com/brickmill/storefront-backend/pkg/db/models"
	"github.com/brickmill/storefront-backend/pkg/enums"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
	"github.com/brickmill/storefront-backend/pkg/outbox"
	"github.com/brickmill/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	// CreateOrder snapshots the active cart behind token into a pending order
	// for the given customer email. The cart must be non-empty and
	// single-currency; nothing is written otherwise.
	CreateOrder(ctx context.Context, token, email string) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByReference(ctx context.Context, reference string) (*models.Order, error)
	ListForCustomer(ctx context.Context, email string, limit int) ([]models.Order, error)
}

type service struct {
	orders    Repository
	carts     cart.Repository
	productz  products.Repository
	customers customers.Repository
	events    *outbox.Service
	tx        txRunner
}

func NewService(
	orders Repository,
	carts cart.Repository,
	productRepo products.Repository,
	customerRepo customers.Repository,
	events *outbox.Service,
	tx txRunner,
) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("products repository is required")
	}
	if customerRepo == nil {
		return nil, fmt.Errorf("customers repository is required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	return &service{
		orders:    orders,
		carts:     carts,
		productz:  productRepo,
		customers: customerRepo,
		events:    events,
		tx:        tx,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, token, email string) (*models.Order, error) {
	normalized, err := customers.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if !carttoken.Valid(token) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart token missing or malformed")
	}

	var orderID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		basket, err := s.carts.WithTx(tx).FindActiveByToken(ctx, token)
		if err != nil {
			return err
		}
		if len(basket.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		if basket.CustomerEmail != nil && *basket.CustomerEmail != normalized {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart belongs to another customer")
		}

		totals, err := cart.ComputeTotals(basket.Items)
		if err != nil {
			return err
		}

		if _, err := s.customers.WithTx(tx).FindOrCreateByEmail(ctx, normalized); err != nil {
			return err
		}

		lines, err := s.freezeLines(ctx, tx, basket.Items)
		if err != nil {
			return err
		}

		reference, err := MintReference()
		if err != nil {
			return err
		}

		cartID := basket.ID
		order, err := s.orders.WithTx(tx).Create(ctx, &models.Order{
			Reference:     reference,
			CustomerEmail: normalized,
			CartID:        &cartID,
			Status:        enums.OrderStatusPending,
			TotalCents:    totals.TotalCents,
			Currency:      totals.Currency,
			Items:         lines,
		})
		if err != nil {
			return err
		}
		orderID = order.ID

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{CustomerEmail: normalized, Role: "customer"},
			Version:       1,
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				Reference:     order.Reference,
				CartID:        basket.ID,
				CustomerEmail: normalized,
				TotalCents:    order.TotalCents,
				Currency:      order.Currency,
				ItemCount:     totals.ItemCount,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.orders.FindByID(ctx, orderID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.orders.FindByID(ctx, id)
}

func (s *service) GetByReference(ctx context.Context, reference string) (*models.Order, error) {
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}
	return s.orders.FindByReference(ctx, reference)
}

func (s *service) ListForCustomer(ctx context.Context, email string, limit int) ([]models.Order, error) {
	normalized, err := customers.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.orders.ListByEmail(ctx, normalized, limit)
}

// freezeLines copies cart items into order lines, resolving product titles at
// this instant. Prices come from the cart snapshot, not the live catalog.
func (s *service) freezeLines(ctx context.Context, tx *gorm.DB, items []models.CartItem) ([]models.OrderItem, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := s.productz.WithTx(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	titles := make(map[uuid.UUID]string, len(catalog))
	for _, p := range catalog {
		titles[p.ID] = p.Title
	}

	lines := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		title, ok := titles[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a cart item references a missing product")
		}
		lines = append(lines, models.OrderItem{
			ProductID:      item.ProductID,
			Title:          title,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			Currency:       item.Currency,
			LineTotalCents: item.Quantity * item.UnitPriceCents,
		})
	}
	return lines, nil
}
