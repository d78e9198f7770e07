package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brickmill/storefront-backend/api/middleware"
	"github.com/brickmill/storefront-backend/api/responses"
	"github.com/brickmill/storefront-backend/api/validators"
	cartsvc "github.com/brickmill/storefront-backend/internal/cart"
	"github.com/brickmill/storefront-backend/pkg/config"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
	"github.com/brickmill/storefront-backend/pkg/logger"
)

// CartGet returns the active cart for the request token, minting a fresh
// anonymous cart when no token is presented.
func CartGet(svc cartsvc.Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		token := middleware.CartTokenFromContext(ctx)
		view, err := svc.GetOrCreate(ctx, token)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		refreshCartCookie(w, cfg, token, view)
		responses.WriteSuccess(w, view)
	}
}

type cartItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Slug      string    `json:"slug"`
	Quantity  int       `json:"quantity" validate:"required"`
}

// CartAddItem adds quantity of a product to the cart, minting a cart when the
// request carries no token yet. The product is referenced by id or by its
// catalog slug.
func CartAddItem(svc cartsvc.Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		token := middleware.CartTokenFromContext(ctx)
		base, err := svc.GetOrCreate(ctx, token)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view, err := svc.AddItem(ctx, base.Cart.Token, cartsvc.ProductRef{ID: payload.ProductID, Slug: payload.Slug}, payload.Quantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		refreshCartCookie(w, cfg, token, view)
		responses.WriteSuccess(w, view)
	}
}

type cartQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// CartSetItemQuantity replaces the line quantity for a product; zero removes
// the line.
func CartSetItemQuantity(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		var payload cartQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		token := middleware.CartTokenFromContext(ctx)
		view, err := svc.SetItemQuantity(ctx, token, productID, *payload.Quantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// CartRemoveItem removes a product line from the cart.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		token := middleware.CartTokenFromContext(ctx)
		view, err := svc.RemoveItem(ctx, token, productID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

func refreshCartCookie(w http.ResponseWriter, cfg config.CartConfig, requestToken string, view *cartsvc.View) {
	if view == nil || view.Cart == nil {
		return
	}
	if view.Cart.Token != requestToken {
		middleware.SetCartTokenCookie(w, cfg, view.Cart.Token)
	}
}
