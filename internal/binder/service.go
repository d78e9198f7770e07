// Package binder merges an anonymous cart into a customer's identified cart
// when the customer signs in, rotating the cart token in the same transaction.
package binder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brickmill/storefront-backend/internal/cart"
	"github.com/brickmill/storefront-backend/internal/customers"
	"github.com/brickmill/storefront-backend/pkg/carttoken"
	dbpkg "github.com/brickmill/storefront-backend/pkg/db"
	"github.com/brickmill/storefront-backend/pkg/db/models"
	"github.com/brickmill/storefront-backend/pkg/enums"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result is what a successful bind hands back to the HTTP layer: the rotated
// token to set on the cookie and the cart it now points at.
type Result struct {
	Token  string
	Cart   *models.Cart
	Merged bool
}

type Service interface {
	// Bind attaches the identified customer's email to a cart and rotates the
	// token. If the request carried an anonymous cart whose items can be
	// claimed, they are merged into the customer's active cart first.
	Bind(ctx context.Context, oldToken, email string) (*Result, error)
}

type service struct {
	carts     cart.Repository
	customers customers.Repository
	tx        txRunner
}

func NewService(carts cart.Repository, customerRepo customers.Repository, tx txRunner) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if customerRepo == nil {
		return nil, fmt.Errorf("customers repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	return &service{carts: carts, customers: customerRepo, tx: tx}, nil
}

func (s *service) Bind(ctx context.Context, oldToken, email string) (*Result, error) {
	normalized, err := customers.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	newToken, err := carttoken.Mint()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to mint cart token")
	}

	var (
		targetID uuid.UUID
		merged   bool
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.carts.WithTx(tx)

		if _, err := s.customers.WithTx(tx).FindOrCreateByEmail(ctx, normalized); err != nil {
			return err
		}

		old, err := s.claimableCart(ctx, repo, oldToken, normalized)
		if err != nil {
			return err
		}

		target, err := repo.FindActiveByEmail(ctx, normalized)
		if err != nil && !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return err
		}

		switch {
		case target == nil && old == nil:
			created, err := repo.Create(ctx, &models.Cart{
				Token:         newToken,
				CustomerEmail: &normalized,
				Status:        enums.CartStatusActive,
			})
			if err != nil {
				return err
			}
			targetID = created.ID
			return nil

		case target == nil:
			// The anonymous cart becomes the customer's cart outright.
			target = old
			old = nil

		case old != nil && old.ID == target.ID:
			old = nil
		}

		targetID = target.ID

		if old != nil {
			didMerge, err := s.mergeInto(ctx, repo, old, target)
			if err != nil {
				return err
			}
			merged = didMerge
		}

		if err := repo.SetCustomerEmail(ctx, target.ID, normalized); err != nil {
			return err
		}
		return repo.UpdateToken(ctx, target.ID, newToken)
	})
	if err != nil {
		return nil, err
	}

	bound, err := s.carts.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &Result{Token: newToken, Cart: bound, Merged: merged}, nil
}

// claimableCart resolves the pre-auth cart token and applies the ownership
// guard: a cart already bound to a different email is never merged, so one
// customer cannot absorb another's basket by replaying a stale cookie.
func (s *service) claimableCart(ctx context.Context, repo cart.Repository, token, email string) (*models.Cart, error) {
	if !carttoken.Valid(token) {
		return nil, nil
	}
	old, err := repo.FindActiveByToken(ctx, token)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if old.CustomerEmail != nil && *old.CustomerEmail != email {
		return nil, nil
	}
	return old, nil
}

// mergeInto sums the old cart's lines into the target and empties the old
// cart. The cart_merges row is inserted first; a duplicate pair means this
// exact merge already ran, so the whole step is skipped rather than summed
// twice.
func (s *service) mergeInto(ctx context.Context, repo cart.Repository, old, target *models.Cart) (bool, error) {
	err := repo.InsertMerge(ctx, &models.CartMerge{OldCartID: old.ID, NewCartID: target.ID})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, err
	}

	for _, item := range old.Items {
		line := models.CartItem{
			CartID:         target.ID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			Currency:       item.Currency,
		}
		if err := repo.UpsertItem(ctx, &line); err != nil {
			return false, err
		}
	}
	if err := repo.ClearItems(ctx, old.ID); err != nil {
		return false, err
	}
	return true, nil
}
