package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
)

// ProductDTO is the catalog read shape shared by storefront and admin.
type ProductDTO struct {
	ID                  uuid.UUID  `json:"id"`
	Slug                string     `json:"slug"`
	Name                string     `json:"name"`
	Description         *string    `json:"description,omitempty"`
	CategoryID          uuid.UUID  `json:"category_id"`
	CategorySlug        string     `json:"category_slug,omitempty"`
	CategoryName        string     `json:"category_name,omitempty"`
	PriceCents          int64      `json:"price_cents"`
	CompareAtPriceCents *int64     `json:"compare_at_price_cents,omitempty"`
	WeightGrams         int        `json:"weight_grams"`
	Tags                []string   `json:"tags"`
	ImageURL            *string    `json:"image_url,omitempty"`
	IsActive            bool       `json:"is_active"`
	IsFeatured          bool       `json:"is_featured"`
	AvailableQty        *int       `json:"available_qty,omitempty"`
	SellableQty         *int       `json:"sellable_qty,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// NewProductDTO flattens the model plus its preloaded relations.
func NewProductDTO(product *models.Product) *ProductDTO {
	if product == nil {
		return nil
	}
	dto := &ProductDTO{
		ID:                  product.ID,
		Slug:                product.Slug,
		Name:                product.Name,
		Description:         product.Description,
		CategoryID:          product.CategoryID,
		PriceCents:          product.PriceCents,
		CompareAtPriceCents: product.CompareAtPriceCents,
		WeightGrams:         product.WeightGrams,
		Tags:                append([]string(nil), product.Tags...),
		ImageURL:            product.ImageURL,
		IsActive:            product.IsActive,
		IsFeatured:          product.IsFeatured,
		CreatedAt:           product.CreatedAt,
		UpdatedAt:           product.UpdatedAt,
	}
	if product.Category != nil {
		dto.CategorySlug = product.Category.Slug
		dto.CategoryName = product.Category.Name
	}
	if product.Inventory != nil {
		available := product.Inventory.AvailableQty
		sellable := available - product.Inventory.ReservedQty
		if sellable < 0 {
			sellable = 0
		}
		dto.AvailableQty = &available
		dto.SellableQty = &sellable
	}
	return dto
}

// CategoryDTO is the category read shape.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Position    int       `json:"position"`
}

// NewCategoryDTO maps the category model.
func NewCategoryDTO(category *models.Category) *CategoryDTO {
	if category == nil {
		return nil
	}
	return &CategoryDTO{
		ID:          category.ID,
		Slug:        category.Slug,
		Name:        category.Name,
		Description: category.Description,
		Position:    category.Position,
	}
}

// ProductListFilters narrows storefront and admin product listings.
type ProductListFilters struct {
	CategorySlug string
	Query        string
	Featured     *bool
	// ActiveOnly hides drafts; the storefront always sets it, admin may not.
	ActiveOnly bool
}

// ProductListInput is the full listing request.
type ProductListInput struct {
	Pagination pagination.Params
	Filters    ProductListFilters
}

// ProductListResult is one page of products plus the next cursor.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}
