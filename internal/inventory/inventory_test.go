package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  category_id TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  compare_at_price_cents INTEGER,
  weight_grams INTEGER NOT NULL DEFAULT 0,
  tags TEXT NOT NULL DEFAULT '{}',
  image_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  is_featured INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	inventory := `
CREATE TABLE IF NOT EXISTS inventory_items (
  product_id TEXT PRIMARY KEY,
  available_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  low_stock_threshold INTEGER NOT NULL DEFAULT 5,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(products).Error)
	require.NoError(t, db.Exec(inventory).Error)
	return db
}

func seedInventory(t *testing.T, db *gorm.DB, available, reserved, threshold int) uuid.UUID {
	t.Helper()
	productID := uuid.New()
	require.NoError(t, db.Create(&models.Product{
		ID:         productID,
		Slug:       "p-" + productID.String()[:8],
		Name:       "Wildflower Honey 500g",
		CategoryID: uuid.New(),
		PriceCents: 1250,
		IsActive:   true,
	}).Error)
	require.NoError(t, db.Create(&models.InventoryItem{
		ProductID:         productID,
		AvailableQty:      available,
		ReservedQty:       reserved,
		LowStockThreshold: threshold,
	}).Error)
	return productID
}

func TestManagerReserveTx(t *testing.T) {
	db := setupInventoryTestDB(t)
	mgr := NewManager()
	repo := NewRepository(db)
	ctx := context.Background()

	productID := seedInventory(t, db, 10, 2, 5)

	t.Run("reserves within sellable balance", func(t *testing.T) {
		require.NoError(t, mgr.ReserveTx(ctx, db, productID, 8))
		item, err := repo.FindByProduct(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 10, item.AvailableQty)
		assert.Equal(t, 10, item.ReservedQty)
	})

	t.Run("rejects oversell", func(t *testing.T) {
		err := mgr.ReserveTx(ctx, db, productID, 1)
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeOutOfStock, typed.Code())
	})

	t.Run("rejects non-positive qty", func(t *testing.T) {
		err := mgr.ReserveTx(ctx, db, productID, 0)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	})
}

func TestManagerCommitTx(t *testing.T) {
	db := setupInventoryTestDB(t)
	mgr := NewManager()
	repo := NewRepository(db)
	ctx := context.Background()

	productID := seedInventory(t, db, 10, 4, 5)

	require.NoError(t, mgr.CommitTx(ctx, db, productID, 4))
	item, err := repo.FindByProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 6, item.AvailableQty)
	assert.Equal(t, 0, item.ReservedQty)

	err = mgr.CommitTx(ctx, db, productID, 1)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestManagerReleaseTx(t *testing.T) {
	db := setupInventoryTestDB(t)
	mgr := NewManager()
	repo := NewRepository(db)
	ctx := context.Background()

	productID := seedInventory(t, db, 10, 4, 5)

	require.NoError(t, mgr.ReleaseTx(ctx, db, productID, 3))
	item, err := repo.FindByProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 10, item.AvailableQty)
	assert.Equal(t, 1, item.ReservedQty)

	// Over-release is a no-op, not an error.
	require.NoError(t, mgr.ReleaseTx(ctx, db, productID, 5))
	item, err = repo.FindByProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 1, item.ReservedQty)
}

func TestManagerRestockTx(t *testing.T) {
	db := setupInventoryTestDB(t)
	mgr := NewManager()
	repo := NewRepository(db)
	ctx := context.Background()

	productID := seedInventory(t, db, 6, 0, 5)

	require.NoError(t, mgr.RestockTx(ctx, db, productID, 4))
	item, err := repo.FindByProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 10, item.AvailableQty)
	assert.Equal(t, 0, item.ReservedQty)

	require.NoError(t, mgr.RestockTx(ctx, db, productID, 0))
	item, err = repo.FindByProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 10, item.AvailableQty)
}

func TestRepositoryAdjust(t *testing.T) {
	db := setupInventoryTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	productID := seedInventory(t, db, 10, 4, 5)

	t.Run("applies delta and threshold", func(t *testing.T) {
		threshold := 8
		item, err := repo.Adjust(ctx, AdjustInput{ProductID: productID, QtyDelta: -3, LowStockThreshold: &threshold})
		require.NoError(t, err)
		assert.Equal(t, 7, item.AvailableQty)
		assert.Equal(t, 8, item.LowStockThreshold)
	})

	t.Run("blocks drop below reservations", func(t *testing.T) {
		_, err := repo.Adjust(ctx, AdjustInput{ProductID: productID, QtyDelta: -4})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := repo.Adjust(ctx, AdjustInput{ProductID: uuid.New(), QtyDelta: 0})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	})
}

func TestRepositoryListLowStock(t *testing.T) {
	db := setupInventoryTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	low := seedInventory(t, db, 3, 0, 5)
	seedInventory(t, db, 50, 0, 5)

	rows, err := repo.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, low, rows[0].ProductID)
	assert.Equal(t, 3, rows[0].AvailableQty)
	assert.Equal(t, "Wildflower Honey 500g", rows[0].ProductName)
}
