// Package stripewebhook applies asynchronous Stripe checkout events to local
// payment, order, and cart state. Delivery is at-least-once and unordered, so
// every transition here is a conditional update keyed on the provider session.
package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/brickmill/storefront-backend/internal/cart"
	"github.com/brickmill/storefront-backend/internal/checkout"
	"github.com/brickmill/storefront-backend/internal/payments"
	"github.com/brickmill/storefront-backend/pkg/enums"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
	"github.com/brickmill/storefront-backend/pkg/logger"
	"github.com/brickmill/storefront-backend/pkg/outbox"
	"github.com/brickmill/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	PaymentRepo       payments.Repository
	OrderRepo         checkout.Repository
	CartRepo          cart.Repository
	Outbox            *outbox.Service
	TransactionRunner txRunner
	Logger            *logger.Logger
}

type Service struct {
	paymentRepo payments.Repository
	orderRepo   checkout.Repository
	cartRepo    cart.Repository
	events      *outbox.Service
	txRunner    txRunner
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.PaymentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repo required")
	}
	if params.OrderRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order repo required")
	}
	if params.CartRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repo required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		paymentRepo: params.PaymentRepo,
		orderRepo:   params.OrderRepo,
		cartRepo:    params.CartRepo,
		events:      params.Outbox,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.reconcileCompleted(ctx, session)
	case stripe.EventTypeCheckoutSessionExpired:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.reconcileFailed(ctx, session, "checkout session expired")
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.reconcileFailed(ctx, session, "async payment failed")
	default:
		return nil
	}
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
	}
	if session.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	return &session, nil
}

// reconcileCompleted settles the payment, marks the order paid, and consumes
// the source cart, all in one transaction. Replays land on conditional
// updates that report no rows touched, so a duplicate delivery mutates
// nothing and emits nothing twice.
func (s *Service) reconcileCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		payment, err := s.paymentRepo.WithTx(tx).FindByProviderSessionID(ctx, session.ID)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				// No local attempt to reconcile; ack so the provider
				// stops redelivering an event we can never apply.
				s.log(ctx, session.ID, "completed session unknown locally, acknowledged")
				return nil
			}
			return err
		}
		if session.AmountTotal > 0 && int(session.AmountTotal) != payment.AmountCents {
			return pkgerrors.New(pkgerrors.CodeConflict, "provider amount does not match payment attempt")
		}

		now := time.Now().UTC()

		settled, err := s.paymentRepo.WithTx(tx).MarkSucceeded(ctx, payment.ID)
		if err != nil {
			return err
		}
		if !settled {
			s.log(ctx, session.ID, "payment already succeeded, replay ignored")
		}

		order, err := s.orderRepo.WithTx(tx).FindByID(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if _, err := s.orderRepo.WithTx(tx).MarkPaid(ctx, order.ID, now); err != nil {
			return err
		}

		if order.CartID != nil {
			if err := s.consumeCart(ctx, tx, *order.CartID, now); err != nil {
				return err
			}
		}

		if err := s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.OrderPaidEvent{
				OrderID:       order.ID,
				Reference:     order.Reference,
				CustomerEmail: order.CustomerEmail,
				AmountCents:   payment.AmountCents,
				Currency:      payment.Currency,
				Method:        enums.PaymentMethodCard,
				PaidAt:        now,
			},
		}); err != nil {
			return err
		}

		if order.CartID != nil {
			if err := s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCartConverted,
				AggregateType: enums.AggregateCart,
				AggregateID:   *order.CartID,
				Version:       1,
				OccurredAt:    now,
				Data: payloads.CartConvertedEvent{
					CartID:      *order.CartID,
					OrderID:     order.ID,
					ConvertedAt: now,
				},
			}); err != nil {
				return err
			}
		}

		s.log(ctx, session.ID, "checkout session reconciled")
		return nil
	})
}

func (s *Service) consumeCart(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, now time.Time) error {
	repo := s.cartRepo.WithTx(tx)
	if err := repo.ClearItems(ctx, cartID); err != nil {
		return err
	}
	return repo.MarkConverted(ctx, cartID, now)
}

// reconcileFailed records the failure on the payment attempt. The order stays
// pending; a later attempt can still settle it.
func (s *Service) reconcileFailed(ctx context.Context, session *stripe.CheckoutSession, reason string) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		payment, err := s.paymentRepo.WithTx(tx).FindByProviderSessionID(ctx, session.ID)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				// Expired sessions we never recorded carry nothing to undo.
				return nil
			}
			return err
		}

		failed, err := s.paymentRepo.WithTx(tx).MarkFailed(ctx, payment.ID, reason)
		if err != nil {
			return err
		}
		if !failed {
			return nil
		}

		return s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Data: payloads.PaymentFailedEvent{
				OrderID:           payment.OrderID,
				PaymentID:         payment.ID,
				ProviderSessionID: payment.ProviderSessionID,
				AmountCents:       payment.AmountCents,
				Currency:          payment.Currency,
				Reason:            reason,
			},
		})
	})
}

func (s *Service) log(ctx context.Context, sessionID, msg string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"provider_session_id": sessionID})
	s.logg.Info(logCtx, msg)
}
