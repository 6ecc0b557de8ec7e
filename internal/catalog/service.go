package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/visibility"
)

// Service exposes catalog reads for the storefront and CRUD for admin.
type Service interface {
	// Storefront reads. Inactive products are invisible.
	ListProducts(ctx context.Context, input ProductListInput) (*ProductListResult, error)
	GetProductBySlug(ctx context.Context, slug string) (*ProductDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)

	// Admin catalog management.
	AdminListProducts(ctx context.Context, input ProductListInput) (*ProductListResult, error)
	AdminGetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	SetProductImage(ctx context.Context, id uuid.UUID, imageURL string) (*ProductDTO, error)
	CreateCategory(ctx context.Context, input CategoryInput) (*CategoryDTO, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (*CategoryDTO, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Slug                string
	Name                string
	Description         *string
	CategoryID          uuid.UUID
	PriceCents          int64
	CompareAtPriceCents *int64
	WeightGrams         int
	Tags                []string
	ImageURL            *string
	IsActive            bool
	IsFeatured          bool
	Inventory           InventoryInput
}

// InventoryInput captures the starting stock for a product.
type InventoryInput struct {
	AvailableQty      int
	LowStockThreshold int
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Slug                *string
	Name                *string
	Description         *string
	CategoryID          *uuid.UUID
	PriceCents          *int64
	CompareAtPriceCents *int64
	WeightGrams         *int
	Tags                *[]string
	ImageURL            *string
	IsActive            *bool
	IsFeatured          *bool
}

// CategoryInput is the create/update payload for categories.
type CategoryInput struct {
	Slug        string
	Name        string
	Description *string
	Position    int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type inventoryWriter interface {
	UpsertTx(ctx context.Context, tx *gorm.DB, item *models.InventoryItem) error
}

type service struct {
	store     Store
	tx        txRunner
	inventory inventoryWriter
}

// NewService constructs the catalog service.
func NewService(store Store, tx txRunner, inventory inventoryWriter) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("catalog store required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory writer required")
	}
	return &service{store: store, tx: tx, inventory: inventory}, nil
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ListProducts serves the storefront listing; drafts stay hidden.
func (s *service) ListProducts(ctx context.Context, input ProductListInput) (*ProductListResult, error) {
	input.Filters.ActiveOnly = true
	result, err := s.store.ListProducts(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return result, nil
}

// GetProductBySlug returns a visible product or not-found.
func (s *service) GetProductBySlug(ctx context.Context, slug string) (*ProductDTO, error) {
	product, err := s.store.FindProductBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if err := visibility.EnsureProductVisible(visibility.ProductVisibilityInput{Product: product}); err != nil {
		return nil, err
	}
	return NewProductDTO(product), nil
}

// ListCategories returns all categories in display order.
func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewCategoryDTO(&rows[i]))
	}
	return out, nil
}

// AdminListProducts lists without the visibility filter.
func (s *service) AdminListProducts(ctx context.Context, input ProductListInput) (*ProductListResult, error) {
	result, err := s.store.ListProducts(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return result, nil
}

// AdminGetProduct loads any product, active or not.
func (s *service) AdminGetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewProductDTO(product), nil
}

// CreateProduct inserts the product and its starting inventory atomically.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if err := validateSlug(input.Slug); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_cents must be non-negative")
	}
	if input.WeightGrams < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight_grams must be non-negative")
	}
	if input.Inventory.AvailableQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available_qty must be non-negative")
	}
	if input.Inventory.LowStockThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "low_stock_threshold must be non-negative")
	}
	if err := s.ensureCategoryExists(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	var createdID uuid.UUID
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txStore := s.store.WithTx(tx)

		product := &models.Product{
			Slug:                strings.TrimSpace(input.Slug),
			Name:                strings.TrimSpace(input.Name),
			Description:         input.Description,
			CategoryID:          input.CategoryID,
			PriceCents:          input.PriceCents,
			CompareAtPriceCents: input.CompareAtPriceCents,
			WeightGrams:         input.WeightGrams,
			Tags:                append([]string(nil), input.Tags...),
			ImageURL:            input.ImageURL,
			IsActive:            input.IsActive,
			IsFeatured:          input.IsFeatured,
		}
		created, err := txStore.CreateProduct(ctx, product)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		createdID = created.ID

		item := &models.InventoryItem{
			ProductID:         created.ID,
			AvailableQty:      input.Inventory.AvailableQty,
			LowStockThreshold: input.Inventory.LowStockThreshold,
		}
		if item.LowStockThreshold == 0 {
			item.LowStockThreshold = 5
		}
		if err := s.inventory.UpsertTx(ctx, tx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: upsert inventory")
		}
		return nil
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}

	product, err := s.loadProduct(ctx, createdID)
	if err != nil {
		return nil, err
	}
	return NewProductDTO(product), nil
}

// UpdateProduct applies partial changes and returns the fresh detail.
func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if input.Slug != nil {
		if err := validateSlug(*input.Slug); err != nil {
			return nil, err
		}
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}
	if input.PriceCents != nil && *input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_cents must be non-negative")
	}
	if input.WeightGrams != nil && *input.WeightGrams < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight_grams must be non-negative")
	}
	if input.CategoryID != nil {
		if err := s.ensureCategoryExists(ctx, *input.CategoryID); err != nil {
			return nil, err
		}
	}

	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	applyProductUpdate(product, input)
	if _, err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}

	updated, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewProductDTO(updated), nil
}

// DeleteProduct removes the product; inventory rows cascade.
func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if _, err := s.loadProduct(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

// SetProductImage stores a generated or uploaded image URL on the product.
func (s *service) SetProductImage(ctx context.Context, id uuid.UUID, imageURL string) (*ProductDTO, error) {
	url := strings.TrimSpace(imageURL)
	if url == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image url is required")
	}
	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	product.ImageURL = &url
	if _, err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product image")
	}
	return NewProductDTO(product), nil
}

// CreateCategory inserts a category.
func (s *service) CreateCategory(ctx context.Context, input CategoryInput) (*CategoryDTO, error) {
	if err := validateSlug(input.Slug); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	category := &models.Category{
		Slug:        strings.TrimSpace(input.Slug),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Position:    input.Position,
	}
	created, err := s.store.CreateCategory(ctx, category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert category")
	}
	return NewCategoryDTO(created), nil
}

// UpdateCategory replaces the mutable category fields.
func (s *service) UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (*CategoryDTO, error) {
	if err := validateSlug(input.Slug); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	category, err := s.store.FindCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	category.Slug = strings.TrimSpace(input.Slug)
	category.Name = strings.TrimSpace(input.Name)
	category.Description = input.Description
	category.Position = input.Position
	updated, err := s.store.UpdateCategory(ctx, category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update category")
	}
	return NewCategoryDTO(updated), nil
}

// DeleteCategory removes an empty category. Categories still referenced by
// products are protected.
func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.FindCategoryByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	count, err := s.store.CountProductsInCategory(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count category products")
	}
	if count > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "category still has products").WithDetails(map[string]any{
			"product_count": count,
		})
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	return nil
}

func (s *service) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.store.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) ensureCategoryExists(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "category_id is required")
	}
	if _, err := s.store.FindCategoryByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return nil
}

func validateSlug(slug string) error {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	if !slugPattern.MatchString(trimmed) {
		return pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits, and hyphens")
	}
	return nil
}

func applyProductUpdate(product *models.Product, input UpdateProductInput) {
	if input.Slug != nil {
		product.Slug = strings.TrimSpace(*input.Slug)
	}
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.CategoryID != nil {
		product.CategoryID = *input.CategoryID
		product.Category = nil
	}
	if input.PriceCents != nil {
		product.PriceCents = *input.PriceCents
	}
	if input.CompareAtPriceCents != nil {
		product.CompareAtPriceCents = input.CompareAtPriceCents
	}
	if input.WeightGrams != nil {
		product.WeightGrams = *input.WeightGrams
	}
	if input.Tags != nil {
		product.Tags = append([]string(nil), *input.Tags...)
	}
	if input.ImageURL != nil {
		product.ImageURL = input.ImageURL
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if input.IsFeatured != nil {
		product.IsFeatured = *input.IsFeatured
	}
}
