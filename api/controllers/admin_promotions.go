package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/api/responses"
	"github.com/mieldesol/modhu-backend/api/validators"
	"github.com/mieldesol/modhu-backend/internal/promotions"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
)

type promotionTierRequest struct {
	MinQuantity     int     `json:"min_quantity" validate:"required,min=1"`
	DiscountPercent float64 `json:"discount_percent" validate:"required,gt=0,lte=100"`
}

type createPromotionRequest struct {
	Name               string                 `json:"name" validate:"required,max=200"`
	Code               *string                `json:"code" validate:"omitempty,max=64"`
	Type               string                 `json:"type" validate:"required,max=40"`
	DiscountType       string                 `json:"discount_type" validate:"omitempty,max=20"`
	DiscountPercent    float64                `json:"discount_percent" validate:"omitempty,gt=0,lte=100"`
	DiscountValueCents int64                  `json:"discount_value_cents" validate:"omitempty,min=1"`
	MaxDiscountCents   *int64                 `json:"max_discount_cents" validate:"omitempty,min=1"`
	ProductIDs         []string               `json:"product_ids" validate:"omitempty,dive,uuid"`
	CategoryIDs        []string               `json:"category_ids" validate:"omitempty,dive,uuid"`
	StartsAt           time.Time              `json:"starts_at" validate:"required"`
	EndsAt             *time.Time             `json:"ends_at"`
	DaysOfWeek         []string               `json:"days_of_week" validate:"omitempty,max=7,dive,max=10"`
	MaxUses            *int                   `json:"max_uses" validate:"omitempty,min=1"`
	MaxUsesPerCustomer *int                   `json:"max_uses_per_customer" validate:"omitempty,min=1"`
	Priority           int                    `json:"priority" validate:"min=0"`
	Stackable          bool                   `json:"stackable"`
	IsActive           bool                   `json:"is_active"`
	BundleProductIDs   []string               `json:"bundle_product_ids" validate:"omitempty,dive,uuid"`
	BundlePriceCents   int64                  `json:"bundle_price_cents" validate:"omitempty,min=1"`
	BuyQuantity        int                    `json:"buy_quantity" validate:"omitempty,min=1"`
	GetQuantity        int                    `json:"get_quantity" validate:"omitempty,min=1"`
	Tiers              []promotionTierRequest `json:"tiers" validate:"omitempty,max=10,dive"`
	MinCartValueCents  int64                  `json:"min_cart_value_cents" validate:"omitempty,min=1"`
}

func (r createPromotionRequest) toInput() (promotions.CreatePromotionInput, error) {
	productIDs, err := parsePromotionUUIDs(r.ProductIDs, "product_ids")
	if err != nil {
		return promotions.CreatePromotionInput{}, err
	}
	categoryIDs, err := parsePromotionUUIDs(r.CategoryIDs, "category_ids")
	if err != nil {
		return promotions.CreatePromotionInput{}, err
	}
	bundleIDs, err := parsePromotionUUIDs(r.BundleProductIDs, "bundle_product_ids")
	if err != nil {
		return promotions.CreatePromotionInput{}, err
	}

	tiers := make([]promotions.TierInput, 0, len(r.Tiers))
	for _, tier := range r.Tiers {
		tiers = append(tiers, promotions.TierInput{
			MinQuantity:     tier.MinQuantity,
			DiscountPercent: tier.DiscountPercent,
		})
	}

	return promotions.CreatePromotionInput{
		Name:               r.Name,
		Code:               r.Code,
		Type:               r.Type,
		DiscountType:       r.DiscountType,
		DiscountPercent:    r.DiscountPercent,
		DiscountValueCents: r.DiscountValueCents,
		MaxDiscountCents:   r.MaxDiscountCents,
		ProductIDs:         productIDs,
		CategoryIDs:        categoryIDs,
		StartsAt:           r.StartsAt,
		EndsAt:             r.EndsAt,
		DaysOfWeek:         r.DaysOfWeek,
		MaxUses:            r.MaxUses,
		MaxUsesPerCustomer: r.MaxUsesPerCustomer,
		Priority:           r.Priority,
		Stackable:          r.Stackable,
		IsActive:           r.IsActive,
		BundleProductIDs:   bundleIDs,
		BundlePriceCents:   r.BundlePriceCents,
		BuyQuantity:        r.BuyQuantity,
		GetQuantity:        r.GetQuantity,
		Tiers:              tiers,
		MinCartValueCents:  r.MinCartValueCents,
	}, nil
}

type updatePromotionRequest struct {
	Name               *string                 `json:"name" validate:"omitempty,max=200"`
	Code               *string                 `json:"code" validate:"omitempty,max=64"`
	DiscountType       *string                 `json:"discount_type" validate:"omitempty,max=20"`
	DiscountPercent    *float64                `json:"discount_percent" validate:"omitempty,gt=0,lte=100"`
	DiscountValueCents *int64                  `json:"discount_value_cents" validate:"omitempty,min=1"`
	MaxDiscountCents   *int64                  `json:"max_discount_cents" validate:"omitempty,min=1"`
	ProductIDs         *[]string               `json:"product_ids" validate:"omitempty,dive,uuid"`
	CategoryIDs        *[]string               `json:"category_ids" validate:"omitempty,dive,uuid"`
	StartsAt           *time.Time              `json:"starts_at"`
	EndsAt             *time.Time              `json:"ends_at"`
	DaysOfWeek         *[]string               `json:"days_of_week" validate:"omitempty,max=7,dive,max=10"`
	MaxUses            *int                    `json:"max_uses" validate:"omitempty,min=1"`
	MaxUsesPerCustomer *int                    `json:"max_uses_per_customer" validate:"omitempty,min=1"`
	Priority           *int                    `json:"priority" validate:"omitempty,min=0"`
	Stackable          *bool                   `json:"stackable"`
	IsActive           *bool                   `json:"is_active"`
	BundleProductIDs   *[]string               `json:"bundle_product_ids" validate:"omitempty,dive,uuid"`
	BundlePriceCents   *int64                  `json:"bundle_price_cents" validate:"omitempty,min=1"`
	BuyQuantity        *int                    `json:"buy_quantity" validate:"omitempty,min=1"`
	GetQuantity        *int                    `json:"get_quantity" validate:"omitempty,min=1"`
	Tiers              *[]promotionTierRequest `json:"tiers" validate:"omitempty,max=10,dive"`
	MinCartValueCents  *int64                  `json:"min_cart_value_cents" validate:"omitempty,min=1"`
}

func (r updatePromotionRequest) toInput() (promotions.UpdatePromotionInput, error) {
	input := promotions.UpdatePromotionInput{
		Name:               r.Name,
		Code:               r.Code,
		DiscountType:       r.DiscountType,
		DiscountPercent:    r.DiscountPercent,
		DiscountValueCents: r.DiscountValueCents,
		MaxDiscountCents:   r.MaxDiscountCents,
		StartsAt:           r.StartsAt,
		EndsAt:             r.EndsAt,
		DaysOfWeek:         r.DaysOfWeek,
		MaxUses:            r.MaxUses,
		MaxUsesPerCustomer: r.MaxUsesPerCustomer,
		Priority:           r.Priority,
		Stackable:          r.Stackable,
		IsActive:           r.IsActive,
		BundlePriceCents:   r.BundlePriceCents,
		BuyQuantity:        r.BuyQuantity,
		GetQuantity:        r.GetQuantity,
		MinCartValueCents:  r.MinCartValueCents,
	}

	if r.ProductIDs != nil {
		ids, err := parsePromotionUUIDs(*r.ProductIDs, "product_ids")
		if err != nil {
			return promotions.UpdatePromotionInput{}, err
		}
		input.ProductIDs = &ids
	}
	if r.CategoryIDs != nil {
		ids, err := parsePromotionUUIDs(*r.CategoryIDs, "category_ids")
		if err != nil {
			return promotions.UpdatePromotionInput{}, err
		}
		input.CategoryIDs = &ids
	}
	if r.BundleProductIDs != nil {
		ids, err := parsePromotionUUIDs(*r.BundleProductIDs, "bundle_product_ids")
		if err != nil {
			return promotions.UpdatePromotionInput{}, err
		}
		input.BundleProductIDs = &ids
	}
	if r.Tiers != nil {
		tiers := make([]promotions.TierInput, 0, len(*r.Tiers))
		for _, tier := range *r.Tiers {
			tiers = append(tiers, promotions.TierInput{
				MinQuantity:     tier.MinQuantity,
				DiscountPercent: tier.DiscountPercent,
			})
		}
		input.Tiers = &tiers
	}

	return input, nil
}

func parsePromotionUUIDs(values []string, field string) ([]uuid.UUID, error) {
	result := make([]uuid.UUID, 0, len(values))
	for _, raw := range values {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		parsed, err := uuid.Parse(trimmed)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid uuid list").WithDetails(map[string]any{"field": field})
		}
		result = append(result, parsed)
	}
	return result, nil
}

func AdminPromotionList(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotions service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := promotions.ListInput{
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}

		includeInactive, err := validators.ParseQueryBool(r, "include_inactive")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if includeInactive != nil {
			input.IncludeInactive = *includeInactive
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func AdminPromotionGet(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotions service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "promotionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid promotion id"))
			return
		}

		promotion, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, promotion)
	}
}

func AdminPromotionCreate(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotions service unavailable"))
			return
		}

		var body createPromotionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promotion, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, promotion)
	}
}

func AdminPromotionUpdate(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotions service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "promotionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid promotion id"))
			return
		}

		var body updatePromotionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promotion, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, promotion)
	}
}

type promotionPreviewLineRequest struct {
	ProductID      string `json:"product_id" validate:"required,uuid"`
	CategoryID     string `json:"category_id" validate:"omitempty,uuid"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"required,min=1"`
	Quantity       int    `json:"quantity" validate:"required,min=1"`
}

type promotionPreviewRequest struct {
	Items               []promotionPreviewLineRequest `json:"items" validate:"required,min=1,max=100,dive"`
	CustomerTotalOrders *int                          `json:"customer_total_orders" validate:"omitempty,min=0"`
	At                  *time.Time                    `json:"at"`
}

// AdminPromotionPreview evaluates one promotion against a sample cart from
// the request body, so a rule can be checked before shoppers see it.
func AdminPromotionPreview(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotions service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "promotionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid promotion id"))
			return
		}

		var body promotionPreviewRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := promotions.EvaluateSampleInput{
			Lines:               make([]promotions.SampleLine, 0, len(body.Items)),
			CustomerTotalOrders: body.CustomerTotalOrders,
			At:                  body.At,
		}
		for _, line := range body.Items {
			productID, err := uuid.Parse(line.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			categoryID := uuid.Nil
			if line.CategoryID != "" {
				categoryID, err = uuid.Parse(line.CategoryID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id"))
					return
				}
			}
			input.Lines = append(input.Lines, promotions.SampleLine{
				ProductID:      productID,
				CategoryID:     categoryID,
				UnitPriceCents: line.UnitPriceCents,
				Quantity:       line.Quantity,
			})
		}

		result, err := svc.EvaluateSample(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func AdminPromotionDelete(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotions service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "promotionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid promotion id"))
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
