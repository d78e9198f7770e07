package controllers

import (
	"net/http"

	"github.com/brickmill/storefront-backend/api/middleware"
	"github.com/brickmill/storefront-backend/api/responses"
	"github.com/brickmill/storefront-backend/api/validators"
	"github.com/brickmill/storefront-backend/internal/binder"
	"github.com/brickmill/storefront-backend/pkg/config"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
	"github.com/brickmill/storefront-backend/pkg/logger"
)

type bindSessionRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type bindSessionResponse struct {
	Merged bool   `json:"merged"`
	Cart   any    `json:"cart"`
	Email  string `json:"email"`
}

// SessionBind attaches an email to the shopper's session. The cart token is
// rotated on every bind, so the response cookie always replaces the old one.
func SessionBind(svc binder.Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session binder unavailable"))
			return
		}

		var payload bindSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		oldToken := middleware.CartTokenFromContext(ctx)
		result, err := svc.Bind(ctx, oldToken, payload.Email)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		middleware.SetCartTokenCookie(w, cfg, result.Token)

		email := ""
		if result.Cart != nil && result.Cart.CustomerEmail != nil {
			email = *result.Cart.CustomerEmail
		}
		responses.WriteSuccess(w, bindSessionResponse{
			Merged: result.Merged,
			Cart:   result.Cart,
			Email:  email,
		})
	}
}
