package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/internal/inventory"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
)

// The methods below give the fixture store the same stock surface as
// internal/inventory's Manager and Repository, so demo wiring can hand one
// in-memory source to checkout, orders, the payment webhook and the admin
// endpoints. The transaction handle is accepted for signature compatibility
// and ignored; demo stock lives next to the products it belongs to.

// SlugIndex returns slug-to-id maps for the seeded categories and products.
// Wiring uses it to scope demo promotions against real catalog rows.
func (s *FixtureStore) SlugIndex() (categories, products map[string]uuid.UUID) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	categories = make(map[string]uuid.UUID, len(s.categories))
	for _, category := range s.categories {
		categories[category.Slug] = category.ID
	}
	products = make(map[string]uuid.UUID, len(s.products))
	for _, product := range s.products {
		products[product.Slug] = product.ID
	}
	return categories, products
}

// ReserveTx holds qty units for a pending order, failing when the sellable
// balance cannot cover the request.
func (s *FixtureStore) ReserveTx(_ context.Context, _ *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve qty must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.inventoryFor(productID)
	if item == nil || item.AvailableQty-item.ReservedQty < qty {
		return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").WithDetails(map[string]any{
			"product_id":    productID,
			"requested_qty": qty,
		})
	}
	item.ReservedQty += qty
	item.UpdatedAt = time.Now().UTC()
	return nil
}

// ReleaseTx returns reserved units to the sellable pool. Releasing more than
// is reserved is a no-op, matching the SQL implementation.
func (s *FixtureStore) ReleaseTx(_ context.Context, _ *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.inventoryFor(productID)
	if item == nil || item.ReservedQty < qty {
		return nil
	}
	item.ReservedQty -= qty
	item.UpdatedAt = time.Now().UTC()
	return nil
}

// RestockTx returns committed units to the sellable pool.
func (s *FixtureStore) RestockTx(_ context.Context, _ *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.inventoryFor(productID)
	if item == nil {
		return nil
	}
	item.AvailableQty += qty
	item.UpdatedAt = time.Now().UTC()
	return nil
}

// CommitTx converts a reservation into shipped stock: both available and
// reserved drop by qty.
func (s *FixtureStore) CommitTx(_ context.Context, _ *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.inventoryFor(productID)
	if item == nil || item.ReservedQty < qty || item.AvailableQty < qty {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "inventory commit exceeds reservation").WithDetails(map[string]any{
			"product_id": productID,
			"qty":        qty,
		})
	}
	item.AvailableQty -= qty
	item.ReservedQty -= qty
	item.UpdatedAt = time.Now().UTC()
	return nil
}

// FindByProductTx reads the stock row for a product.
func (s *FixtureStore) FindByProductTx(_ context.Context, _ *gorm.DB, productID uuid.UUID) (*models.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item := s.inventoryFor(productID)
	if item == nil {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *item
	return &clone, nil
}

// UpsertTx creates or replaces the stock row for a product.
func (s *FixtureStore) UpsertTx(_ context.Context, _ *gorm.DB, item *models.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[item.ProductID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	clone := *item
	clone.UpdatedAt = time.Now().UTC()
	product.Inventory = &clone
	return nil
}

// Adjust applies a relative stock correction with the same guards as the SQL
// repository.
func (s *FixtureStore) Adjust(_ context.Context, input inventory.AdjustInput) (*models.InventoryItem, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.LowStockThreshold != nil && *input.LowStockThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "low_stock_threshold must be non-negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.inventoryFor(input.ProductID)
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory row not found")
	}
	if input.QtyDelta != 0 {
		if item.AvailableQty+input.QtyDelta < item.ReservedQty {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "adjustment would drop stock below reservations")
		}
		item.AvailableQty += input.QtyDelta
	}
	if input.LowStockThreshold != nil {
		item.LowStockThreshold = *input.LowStockThreshold
	}
	item.UpdatedAt = time.Now().UTC()
	clone := *item
	return &clone, nil
}

// ListLowStock returns products at or below their low-stock threshold.
func (s *FixtureStore) ListLowStock(_ context.Context) ([]inventory.LowStockRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]inventory.LowStockRow, 0)
	for _, product := range s.products {
		if product.Inventory == nil {
			continue
		}
		item := product.Inventory
		if item.AvailableQty > item.LowStockThreshold {
			continue
		}
		rows = append(rows, inventory.LowStockRow{
			ProductID:         product.ID,
			ProductName:       product.Name,
			AvailableQty:      item.AvailableQty,
			ReservedQty:       item.ReservedQty,
			LowStockThreshold: item.LowStockThreshold,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AvailableQty == rows[j].AvailableQty {
			return rows[i].ProductName < rows[j].ProductName
		}
		return rows[i].AvailableQty < rows[j].AvailableQty
	})
	return rows, nil
}

// inventoryFor returns the live embedded row, creating nothing. Callers hold
// the lock.
func (s *FixtureStore) inventoryFor(productID uuid.UUID) *models.InventoryItem {
	product, ok := s.products[productID]
	if !ok || product.Inventory == nil {
		return nil
	}
	return product.Inventory
}
