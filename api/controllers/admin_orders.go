package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brickmill/storefront-backend/api/responses"
	"github.com/brickmill/storefront-backend/api/validators"
	"github.com/brickmill/storefront-backend/internal/proofs"
	"github.com/brickmill/storefront-backend/pkg/enums"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
	"github.com/brickmill/storefront-backend/pkg/logger"
)

type markPaidRequest struct {
	Method   string `json:"method" validate:"required"`
	MarkedBy string `json:"marked_by" validate:"required,min=3,max=120"`
}

// AdminOrderMarkPaid settles an order after a staff member has reviewed its
// payment proof. Must only be mounted behind the ops gateway.
func AdminOrderMarkPaid(svc proofs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "proof service unavailable"))
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		var payload markPaidRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.Method)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.MarkPaid(ctx, orderID, method, payload.MarkedBy)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
