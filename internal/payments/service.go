// Package payments opens provider checkout sessions for pending orders. Each
// session maps to exactly one payment attempt row; a failed provider call
// leaves no row behind, so retries always mint a fresh session.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	stripelib "github.com/stripe/stripe-go/v84"

	"github.com/brickmill/storefront-backend/internal/checkout"
	"github.com/brickmill/storefront-backend/pkg/config"
	"github.com/brickmill/storefront-backend/pkg/db/models"
	"github.com/brickmill/storefront-backend/pkg/enums"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
	"github.com/brickmill/storefront-backend/pkg/logger"
)

// gateway is the slice of the Stripe client this service needs.
type gateway interface {
	CreateCheckoutSession(ctx context.Context, params *stripelib.CheckoutSessionCreateParams) (*stripelib.CheckoutSession, error)
}

// Session is the caller-facing result of opening a checkout session.
type Session struct {
	PaymentID         uuid.UUID
	ProviderSessionID string
	CheckoutURL       string
}

type Service interface {
	// CreateCheckoutSession opens a hosted checkout session for a pending
	// order and records the payment attempt. The provider call is bounded by
	// the configured timeout; on timeout or provider failure nothing is
	// persisted and the error is retryable.
	CreateCheckoutSession(ctx context.Context, orderID uuid.UUID) (*Session, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
}

type service struct {
	payments Repository
	orders   checkout.Repository
	gw       gateway
	cfg      config.StripeConfig
	logg     *logger.Logger
}

func NewService(payments Repository, orders checkout.Repository, gw gateway, cfg config.StripeConfig, logg *logger.Logger) (Service, error) {
	if payments == nil {
		return nil, fmt.Errorf("payments repository is required")
	}
	if orders == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway is required")
	}
	if cfg.CheckoutTimeout <= 0 {
		return nil, fmt.Errorf("checkout timeout must be positive")
	}
	return &service{payments: payments, orders: orders, gw: gw, cfg: cfg, logg: logg}, nil
}

func (s *service) CreateCheckoutSession(ctx context.Context, orderID uuid.UUID) (*Session, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order is %s, not payable", order.Status))
	}

	params := s.buildSessionParams(order)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CheckoutTimeout)
	defer cancel()

	providerSession, err := s.gw.CreateCheckoutSession(callCtx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider timed out")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider call failed")
	}

	payment, err := s.payments.Create(ctx, &models.Payment{
		OrderID:           order.ID,
		Provider:          enums.PaymentProviderStripe,
		ProviderSessionID: providerSession.ID,
		AmountCents:       order.TotalCents,
		Currency:          order.Currency,
		Status:            enums.PaymentStatusCreated,
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{
			"order_id":            order.ID.String(),
			"payment_id":          payment.ID.String(),
			"provider_session_id": providerSession.ID,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "checkout session created")
	}

	return &Session{
		PaymentID:         payment.ID,
		ProviderSessionID: providerSession.ID,
		CheckoutURL:       providerSession.URL,
	}, nil
}

func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	return s.payments.ListByOrder(ctx, orderID)
}

func (s *service) buildSessionParams(order *models.Order) *stripelib.CheckoutSessionCreateParams {
	lineItems := make([]*stripelib.CheckoutSessionCreateLineItemParams, 0, len(order.Items))
	for _, item := range order.Items {
		lineItems = append(lineItems, &stripelib.CheckoutSessionCreateLineItemParams{
			Quantity: stripelib.Int64(int64(item.Quantity)),
			PriceData: &stripelib.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:   stripelib.String(strings.ToLower(item.Currency.String())),
				UnitAmount: stripelib.Int64(int64(item.UnitPriceCents)),
				ProductData: &stripelib.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripelib.String(item.Title),
				},
			},
		})
	}

	params := &stripelib.CheckoutSessionCreateParams{
		Mode:              stripelib.String(string(stripelib.CheckoutSessionModePayment)),
		SuccessURL:        stripelib.String(s.cfg.SuccessURL),
		CancelURL:         stripelib.String(s.cfg.CancelURL),
		CustomerEmail:     stripelib.String(order.CustomerEmail),
		ClientReferenceID: stripelib.String(order.ID.String()),
		LineItems:         lineItems,
	}
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("order_reference", order.Reference)
	if order.CartID != nil {
		params.AddMetadata("cart_id", order.CartID.String())
	}
	return params
}
