package promotions

import (
	"time"

	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
	"github.com/mieldesol/modhu-backend/pkg/types"
)

// PromotionDTO is the admin API shape of a promotion definition.
type PromotionDTO struct {
	ID                 uuid.UUID            `json:"id"`
	Name               string               `json:"name"`
	Code               *string              `json:"code,omitempty"`
	Type               string               `json:"type"`
	DiscountType       string               `json:"discount_type"`
	DiscountPercent    float64              `json:"discount_percent"`
	DiscountValueCents int64                `json:"discount_value_cents"`
	MaxDiscountCents   *int64               `json:"max_discount_cents,omitempty"`
	ProductIDs         []uuid.UUID          `json:"product_ids"`
	CategoryIDs        []uuid.UUID          `json:"category_ids"`
	StartsAt           time.Time            `json:"starts_at"`
	EndsAt             *time.Time           `json:"ends_at,omitempty"`
	DaysOfWeek         []string             `json:"days_of_week"`
	MaxUses            *int                 `json:"max_uses,omitempty"`
	MaxUsesPerCustomer *int                 `json:"max_uses_per_customer,omitempty"`
	CurrentUses        int                  `json:"current_uses"`
	Priority           int                  `json:"priority"`
	Stackable          bool                 `json:"stackable"`
	IsActive           bool                 `json:"is_active"`
	BundleProductIDs   []uuid.UUID          `json:"bundle_product_ids,omitempty"`
	BundlePriceCents   int64                `json:"bundle_price_cents,omitempty"`
	BuyQuantity        int                  `json:"buy_quantity,omitempty"`
	GetQuantity        int                  `json:"get_quantity,omitempty"`
	Tiers              types.PromotionTiers `json:"tiers,omitempty"`
	MinCartValueCents  int64                `json:"min_cart_value_cents,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// NewPromotionDTO maps the model to its API shape.
func NewPromotionDTO(p *models.Promotion) *PromotionDTO {
	if p == nil {
		return nil
	}
	return &PromotionDTO{
		ID:                 p.ID,
		Name:               p.Name,
		Code:               p.Code,
		Type:               p.Type.String(),
		DiscountType:       p.DiscountType.String(),
		DiscountPercent:    p.DiscountPercent,
		DiscountValueCents: p.DiscountValueCents,
		MaxDiscountCents:   p.MaxDiscountCents,
		ProductIDs:         p.ProductIDs,
		CategoryIDs:        p.CategoryIDs,
		StartsAt:           p.StartsAt,
		EndsAt:             p.EndsAt,
		DaysOfWeek:         p.DaysOfWeek,
		MaxUses:            p.MaxUses,
		MaxUsesPerCustomer: p.MaxUsesPerCustomer,
		CurrentUses:        p.CurrentUses,
		Priority:           p.Priority,
		Stackable:          p.Stackable,
		IsActive:           p.IsActive,
		BundleProductIDs:   p.BundleProductIDs,
		BundlePriceCents:   p.BundlePriceCents,
		BuyQuantity:        p.BuyQuantity,
		GetQuantity:        p.GetQuantity,
		Tiers:              p.Tiers,
		MinCartValueCents:  p.MinCartValueCents,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

// PreviewDTO is the storefront best-promotion response.
type PreviewDTO struct {
	PromotionID   uuid.UUID `json:"promotion_id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	DiscountCents int64     `json:"discount_cents"`
}

// NewPreviewDTO maps an engine selection to the storefront shape.
func NewPreviewDTO(selection *Selection) *PreviewDTO {
	if selection == nil || selection.Promotion == nil {
		return nil
	}
	return &PreviewDTO{
		PromotionID:   selection.Promotion.ID,
		Name:          selection.Promotion.Name,
		Type:          selection.Promotion.Type.String(),
		DiscountCents: selection.DiscountCents,
	}
}

// SampleEvaluation is the admin preview response: the engine verdict for one
// promotion against a hypothetical cart.
type SampleEvaluation struct {
	PromotionID   uuid.UUID  `json:"promotion_id"`
	Name          string     `json:"name"`
	EvaluatedAt   time.Time  `json:"evaluated_at"`
	SubtotalCents int64      `json:"subtotal_cents"`
	Evaluation    Evaluation `json:"evaluation"`
}

// ListInput filters and paginates the admin promotion listing.
type ListInput struct {
	Pagination      pagination.Params
	IncludeInactive bool
}

// ListResult is one page of promotions.
type ListResult struct {
	Promotions []PromotionDTO `json:"promotions"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
