package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/api/middleware"
	"github.com/mieldesol/modhu-backend/api/responses"
	"github.com/mieldesol/modhu-backend/api/validators"
	"github.com/mieldesol/modhu-backend/internal/orders"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/outbox"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
)

type fulfilOrderRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"omitempty,max=64"`
	Carrier        string `json:"carrier" validate:"omitempty,max=40"`
	WeightGrams    int    `json:"weight_grams" validate:"omitempty,min=1"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// actorRef captures who triggered an order transition for the event trail.
// API-key automation has a role but no actor id.
func actorRef(r *http.Request) *outbox.ActorRef {
	role := middleware.RoleFromContext(r.Context())
	actorID := middleware.ActorIDFromContext(r.Context())
	if role == "" && actorID == "" {
		return nil
	}
	ref := &outbox.ActorRef{Role: role}
	if parsed, err := uuid.Parse(actorID); err == nil {
		ref.ActorID = parsed
	}
	return ref
}

func AdminOrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AdminList(r.Context(), orders.AdminListInput{
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
			Status: validators.SanitizeString(r.URL.Query().Get("status"), 40),
			Email:  validators.SanitizeString(r.URL.Query().Get("email"), 254),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func AdminOrderGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		order, err := svc.AdminGet(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// AdminOrderFulfil ships a paid order: label purchase, tracking, state move,
// fulfilment event.
func AdminOrderFulfil(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		var body fulfilOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Fulfil(r.Context(), orders.FulfilInput{
			OrderID:        id,
			TrackingNumber: body.TrackingNumber,
			Carrier:        body.Carrier,
			WeightGrams:    body.WeightGrams,
			Actor:          actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// AdminOrderCancel voids an order and returns its stock.
func AdminOrderCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		var body cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), orders.CancelInput{
			OrderID: id,
			Reason:  body.Reason,
			Actor:   actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// AdminOrderResendConfirmation re-sends the confirmation email for a paid
// order, for when the first one bounced or got lost.
func AdminOrderResendConfirmation(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		if err := svc.ResendConfirmation(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "queued"})
	}
}
