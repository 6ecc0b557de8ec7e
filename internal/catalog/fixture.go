package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
)

// FixtureStore is the in-memory catalog used in demo mode. It satisfies the
// same Store interface as the GORM repository and is selected once in cmd/api
// wiring; services never branch on the mode.
type FixtureStore struct {
	mu         sync.RWMutex
	products   map[uuid.UUID]*models.Product
	categories map[uuid.UUID]*models.Category
}

// NewFixtureStore returns an empty in-memory store.
func NewFixtureStore() *FixtureStore {
	return &FixtureStore{
		products:   make(map[uuid.UUID]*models.Product),
		categories: make(map[uuid.UUID]*models.Category),
	}
}

// NewSeededFixtureStore returns the demo store pre-loaded with the sample
// honey catalog.
func NewSeededFixtureStore() *FixtureStore {
	s := NewFixtureStore()
	s.seed()
	return s
}

// WithTx is a no-op: the fixture store has no transactions.
func (s *FixtureStore) WithTx(_ *gorm.DB) Store {
	return s
}

func (s *FixtureStore) CreateProduct(_ context.Context, product *models.Product) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	clone := cloneProduct(product)
	s.products[product.ID] = clone
	return cloneProduct(clone), nil
}

func (s *FixtureStore) UpdateProduct(_ context.Context, product *models.Product) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return nil, gorm.ErrRecordNotFound
	}
	product.UpdatedAt = time.Now().UTC()
	clone := cloneProduct(product)
	s.products[product.ID] = clone
	return cloneProduct(clone), nil
}

func (s *FixtureStore) DeleteProduct(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
	return nil
}

func (s *FixtureStore) FindProductByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s.withRelations(cloneProduct(product)), nil
}

func (s *FixtureStore) FindProductBySlug(_ context.Context, slug string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, product := range s.products {
		if product.Slug == slug {
			return s.withRelations(cloneProduct(product)), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *FixtureStore) FindProductsByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			out = append(out, *s.withRelations(cloneProduct(product)))
		}
	}
	return out, nil
}

func (s *FixtureStore) ListProducts(_ context.Context, query ProductListInput) (*ProductListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, err
	}
	pageSize := pagination.NormalizeLimit(query.Pagination.Limit)

	var categoryID *uuid.UUID
	if slug := strings.TrimSpace(query.Filters.CategorySlug); slug != "" {
		for _, category := range s.categories {
			if category.Slug == slug {
				id := category.ID
				categoryID = &id
				break
			}
		}
		if categoryID == nil {
			return &ProductListResult{Products: []ProductDTO{}}, nil
		}
	}

	rows := make([]*models.Product, 0, len(s.products))
	for _, product := range s.products {
		if query.Filters.ActiveOnly && !product.IsActive {
			continue
		}
		if query.Filters.Featured != nil && product.IsFeatured != *query.Filters.Featured {
			continue
		}
		if categoryID != nil && product.CategoryID != *categoryID {
			continue
		}
		if search := strings.ToLower(strings.TrimSpace(query.Filters.Query)); search != "" {
			if !strings.Contains(strings.ToLower(product.Name), search) &&
				!strings.Contains(strings.ToLower(product.Slug), search) {
				continue
			}
		}
		rows = append(rows, product)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID.String() > rows[j].ID.String()
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})

	if cursor != nil {
		filtered := rows[:0]
		for _, product := range rows {
			if product.CreatedAt.Before(cursor.CreatedAt) ||
				(product.CreatedAt.Equal(cursor.CreatedAt) && product.ID.String() < cursor.ID.String()) {
				filtered = append(filtered, product)
			}
		}
		rows = filtered
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	products := make([]ProductDTO, 0, len(rows))
	for _, product := range rows {
		products = append(products, *NewProductDTO(s.withRelations(cloneProduct(product))))
	}
	return &ProductListResult{Products: products, NextCursor: nextCursor}, nil
}

func (s *FixtureStore) CreateCategory(_ context.Context, category *models.Category) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	now := time.Now().UTC()
	category.CreatedAt = now
	category.UpdatedAt = now
	clone := *category
	s.categories[category.ID] = &clone
	out := clone
	return &out, nil
}

func (s *FixtureStore) UpdateCategory(_ context.Context, category *models.Category) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[category.ID]; !ok {
		return nil, gorm.ErrRecordNotFound
	}
	category.UpdatedAt = time.Now().UTC()
	clone := *category
	s.categories[category.ID] = &clone
	out := clone
	return &out, nil
}

func (s *FixtureStore) DeleteCategory(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.categories, id)
	return nil
}

func (s *FixtureStore) FindCategoryByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	category, ok := s.categories[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *category
	return &clone, nil
}

func (s *FixtureStore) FindCategoryBySlug(_ context.Context, slug string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, category := range s.categories {
		if category.Slug == slug {
			clone := *category
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *FixtureStore) ListCategories(_ context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Category, 0, len(s.categories))
	for _, category := range s.categories {
		out = append(out, *category)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position == out[j].Position {
			return out[i].Name < out[j].Name
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (s *FixtureStore) CountProductsInCategory(_ context.Context, categoryID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, product := range s.products {
		if product.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}

// SetInventory replaces the embedded demo inventory for a product.
func (s *FixtureStore) SetInventory(productID uuid.UUID, available, reserved, threshold int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[productID]
	if !ok {
		return
	}
	product.Inventory = &models.InventoryItem{
		ProductID:         productID,
		AvailableQty:      available,
		ReservedQty:       reserved,
		LowStockThreshold: threshold,
		UpdatedAt:         time.Now().UTC(),
	}
}

func (s *FixtureStore) withRelations(product *models.Product) *models.Product {
	if category, ok := s.categories[product.CategoryID]; ok {
		clone := *category
		product.Category = &clone
	}
	return product
}

func cloneProduct(product *models.Product) *models.Product {
	clone := *product
	clone.Tags = append([]string(nil), product.Tags...)
	if product.Inventory != nil {
		inv := *product.Inventory
		clone.Inventory = &inv
	}
	clone.Category = nil
	if product.Category != nil {
		category := *product.Category
		clone.Category = &category
	}
	return &clone
}

func (s *FixtureStore) seed() {
	now := time.Now().UTC()
	varietals := &models.Category{
		ID:        uuid.New(),
		Slug:      "varietals",
		Name:      "Varietal Honeys",
		Position:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	giftSets := &models.Category{
		ID:        uuid.New(),
		Slug:      "gift-sets",
		Name:      "Gift Sets",
		Position:  2,
		CreatedAt: now,
		UpdatedAt: now,
	}
	apiary := &models.Category{
		ID:        uuid.New(),
		Slug:      "apiary",
		Name:      "Apiary Goods",
		Position:  3,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.categories[varietals.ID] = varietals
	s.categories[giftSets.ID] = giftSets
	s.categories[apiary.ID] = apiary

	samples := []struct {
		slug     string
		name     string
		category uuid.UUID
		price    int64
		compare  *int64
		weight   int
		featured bool
		stock    int
		tags     []string
	}{
		{"wildflower-honey-500g", "Wildflower Honey 500g", varietals.ID, 1250, nil, 680, true, 40, []string{"raw", "bestseller"}},
		{"acacia-honey-250g", "Acacia Honey 250g", varietals.ID, 980, nil, 380, false, 25, []string{"mild", "light"}},
		{"chestnut-honey-500g", "Chestnut Honey 500g", varietals.ID, 1475, int64Ptr(1650), 680, false, 18, []string{"dark", "robust"}},
		{"orange-blossom-honey-340g", "Orange Blossom Honey 340g", varietals.ID, 1120, nil, 480, true, 32, []string{"citrus"}},
		{"honeymoon-sampler", "Honeymoon Sampler (3 x 120g)", giftSets.ID, 2400, int64Ptr(2850), 560, true, 12, []string{"gift"}},
		{"beeswax-candle-pair", "Beeswax Candle Pair", apiary.ID, 1600, nil, 300, false, 20, []string{"handmade"}},
		{"wooden-honey-dipper", "Wooden Honey Dipper", apiary.ID, 450, nil, 40, false, 60, nil},
	}
	for i, sample := range samples {
		id := uuid.New()
		created := now.Add(-time.Duration(len(samples)-i) * time.Hour)
		s.products[id] = &models.Product{
			ID:                  id,
			Slug:                sample.slug,
			Name:                sample.name,
			CategoryID:          sample.category,
			PriceCents:          sample.price,
			CompareAtPriceCents: sample.compare,
			WeightGrams:         sample.weight,
			Tags:                sample.tags,
			IsActive:            true,
			IsFeatured:          sample.featured,
			Inventory: &models.InventoryItem{
				ProductID:         id,
				AvailableQty:      sample.stock,
				LowStockThreshold: 5,
				UpdatedAt:         created,
			},
			CreatedAt: created,
			UpdatedAt: created,
		}
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}
