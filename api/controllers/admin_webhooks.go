package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/api/responses"
	"github.com/mieldesol/modhu-backend/api/validators"
	outbound "github.com/mieldesol/modhu-backend/internal/webhooks/outbound"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
)

type createWebhookRequest struct {
	URL         string   `json:"url" validate:"required,url,max=2000"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	EventTypes  []string `json:"event_types" validate:"omitempty,dive,min=3,max=80"`
	Secret      string   `json:"secret" validate:"omitempty,min=16,max=128"`
}

func (req createWebhookRequest) toInput() outbound.CreateSubscriptionInput {
	return outbound.CreateSubscriptionInput{
		URL:         strings.TrimSpace(req.URL),
		Description: req.Description,
		EventTypes:  req.EventTypes,
		Secret:      req.Secret,
	}
}

type updateWebhookRequest struct {
	URL         *string  `json:"url" validate:"omitempty,url,max=2000"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	EventTypes  []string `json:"event_types" validate:"omitempty,dive,min=3,max=80"`
	IsActive    *bool    `json:"is_active"`
}

func (req updateWebhookRequest) toInput() outbound.UpdateSubscriptionInput {
	return outbound.UpdateSubscriptionInput{
		URL:         req.URL,
		Description: req.Description,
		EventTypes:  req.EventTypes,
		IsActive:    req.IsActive,
	}
}

// AdminWebhookList returns every subscription, active or not. Stores run a
// handful of endpoints at most, so the list is not paginated.
func AdminWebhookList(svc outbound.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		subs, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"subscriptions": subs})
	}
}

func AdminWebhookGet(svc outbound.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		subscriptionID, err := uuid.Parse(chi.URLParam(r, "subscriptionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription id"))
			return
		}

		sub, err := svc.Get(r.Context(), subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}

func AdminWebhookCreate(svc outbound.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		var req createWebhookRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Create(r.Context(), req.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sub)
	}
}

func AdminWebhookUpdate(svc outbound.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		subscriptionID, err := uuid.Parse(chi.URLParam(r, "subscriptionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription id"))
			return
		}

		var req updateWebhookRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Update(r.Context(), subscriptionID, req.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}

func AdminWebhookDelete(svc outbound.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		subscriptionID, err := uuid.Parse(chi.URLParam(r, "subscriptionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription id"))
			return
		}

		if err := svc.Delete(r.Context(), subscriptionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// AdminWebhookDeliveries pages through the delivery log for one subscription,
// newest first.
func AdminWebhookDeliveries(svc outbound.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		subscriptionID, err := uuid.Parse(chi.URLParam(r, "subscriptionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListDeliveries(r.Context(), subscriptionID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminWebhookRedeliver queues a fresh attempt for a previously recorded
// delivery, regardless of its current status.
func AdminWebhookRedeliver(svc outbound.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		deliveryID, err := uuid.Parse(chi.URLParam(r, "deliveryId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery id"))
			return
		}

		delivery, err := svc.Redeliver(r.Context(), deliveryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}
