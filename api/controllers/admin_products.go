package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/api/responses"
	"github.com/mieldesol/modhu-backend/api/validators"
	"github.com/mieldesol/modhu-backend/internal/catalog"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/openai"
)

type inventorySeedRequest struct {
	AvailableQty      int `json:"available_qty" validate:"min=0"`
	LowStockThreshold int `json:"low_stock_threshold" validate:"min=0"`
}

type createProductRequest struct {
	Slug                string               `json:"slug" validate:"required,max=140"`
	Name                string               `json:"name" validate:"required,max=200"`
	Description         *string              `json:"description" validate:"omitempty,max=5000"`
	CategoryID          string               `json:"category_id" validate:"required,uuid"`
	PriceCents          int64                `json:"price_cents" validate:"required,min=1"`
	CompareAtPriceCents *int64               `json:"compare_at_price_cents" validate:"omitempty,min=1"`
	WeightGrams         int                  `json:"weight_grams" validate:"min=0"`
	Tags                []string             `json:"tags" validate:"omitempty,max=20,dive,max=60"`
	ImageURL            *string              `json:"image_url" validate:"omitempty,url"`
	IsActive            bool                 `json:"is_active"`
	IsFeatured          bool                 `json:"is_featured"`
	Inventory           inventorySeedRequest `json:"inventory"`
}

func (r createProductRequest) toInput() (catalog.CreateProductInput, error) {
	categoryID, err := uuid.Parse(r.CategoryID)
	if err != nil {
		return catalog.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id")
	}
	return catalog.CreateProductInput{
		Slug:                r.Slug,
		Name:                r.Name,
		Description:         r.Description,
		CategoryID:          categoryID,
		PriceCents:          r.PriceCents,
		CompareAtPriceCents: r.CompareAtPriceCents,
		WeightGrams:         r.WeightGrams,
		Tags:                r.Tags,
		ImageURL:            r.ImageURL,
		IsActive:            r.IsActive,
		IsFeatured:          r.IsFeatured,
		Inventory: catalog.InventoryInput{
			AvailableQty:      r.Inventory.AvailableQty,
			LowStockThreshold: r.Inventory.LowStockThreshold,
		},
	}, nil
}

type updateProductRequest struct {
	Slug                *string   `json:"slug" validate:"omitempty,max=140"`
	Name                *string   `json:"name" validate:"omitempty,max=200"`
	Description         *string   `json:"description" validate:"omitempty,max=5000"`
	CategoryID          *string   `json:"category_id" validate:"omitempty,uuid"`
	PriceCents          *int64    `json:"price_cents" validate:"omitempty,min=1"`
	CompareAtPriceCents *int64    `json:"compare_at_price_cents" validate:"omitempty,min=1"`
	WeightGrams         *int      `json:"weight_grams" validate:"omitempty,min=0"`
	Tags                *[]string `json:"tags" validate:"omitempty,max=20,dive,max=60"`
	ImageURL            *string   `json:"image_url" validate:"omitempty,url"`
	IsActive            *bool     `json:"is_active"`
	IsFeatured          *bool     `json:"is_featured"`
}

func (r updateProductRequest) toInput() (catalog.UpdateProductInput, error) {
	input := catalog.UpdateProductInput{
		Slug:                r.Slug,
		Name:                r.Name,
		Description:         r.Description,
		PriceCents:          r.PriceCents,
		CompareAtPriceCents: r.CompareAtPriceCents,
		WeightGrams:         r.WeightGrams,
		Tags:                r.Tags,
		ImageURL:            r.ImageURL,
		IsActive:            r.IsActive,
		IsFeatured:          r.IsFeatured,
	}
	if r.CategoryID != nil {
		categoryID, err := uuid.Parse(*r.CategoryID)
		if err != nil {
			return catalog.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id")
		}
		input.CategoryID = &categoryID
	}
	return input, nil
}

type categoryRequest struct {
	Slug        string  `json:"slug" validate:"required,max=140"`
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Position    int     `json:"position" validate:"min=0"`
}

func (r categoryRequest) toInput() catalog.CategoryInput {
	return catalog.CategoryInput{
		Slug:        r.Slug,
		Name:        r.Name,
		Description: r.Description,
		Position:    r.Position,
	}
}

type generateImageRequest struct {
	Prompt string `json:"prompt" validate:"required,min=8,max=1000"`
}

type imageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*openai.GeneratedImage, error)
}

// AdminProductList pages the full catalog, drafts included.
func AdminProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		input, err := buildProductListInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		active, err := validators.ParseQueryBool(r, "active")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if active != nil {
			input.Filters.ActiveOnly = *active
		}

		result, err := svc.AdminListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func AdminProductGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		product, err := svc.AdminGetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func AdminProductCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func AdminProductUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func AdminProductDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		if err := svc.DeleteProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// AdminProductImage generates product art from a prompt and stores the URL.
func AdminProductImage(svc catalog.Service, images imageGenerator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		if images == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "image generation not configured"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		var body generateImageRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		generated, err := images.GenerateImage(r.Context(), strings.TrimSpace(body.Prompt))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.SetProductImage(r.Context(), id, generated.URL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func AdminCategoryCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var body categoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.CreateCategory(r.Context(), body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, category)
	}
}

func AdminCategoryUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "categoryId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id"))
			return
		}

		var body categoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.UpdateCategory(r.Context(), id, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, category)
	}
}

func AdminCategoryDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "categoryId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id"))
			return
		}

		if err := svc.DeleteCategory(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
