package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
)

// Manager applies stock movements as conditional UPDATEs so concurrent
// checkouts can never oversell. Callers provide the transaction; every
// movement is part of a larger checkout or order flow.
type Manager struct{}

// NewManager returns the stock movement helper.
func NewManager() *Manager {
	return &Manager{}
}

// ReserveTx holds qty units for a pending order. Fails with an out-of-stock
// error when the sellable balance (available minus already reserved) cannot
// cover the request.
func (m *Manager) ReserveTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve qty must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reserve")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET reserved_qty = reserved_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND available_qty - reserved_qty >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").WithDetails(map[string]any{
			"product_id":    productID,
			"requested_qty": qty,
		})
	}
	return nil
}

// ReleaseTx returns reserved units to the sellable pool (cancelled or expired
// orders). Releasing more than is reserved is a no-op rather than an error,
// matching the at-least-once webhook delivery this flow sits behind.
func (m *Manager) ReleaseTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND reserved_qty >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	return nil
}

// RestockTx returns committed units to the sellable pool. Used when a paid
// order is cancelled after its reservation was already committed.
func (m *Manager) RestockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory restock")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ?
	`, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock inventory")
	}
	return nil
}

// CommitTx converts a reservation into shipped stock once payment lands:
// both available and reserved drop by qty.
func (m *Manager) CommitTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory commit")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET available_qty = available_qty - ?,
			reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND reserved_qty >= ? AND available_qty >= ?
	`, qty, qty, productID, qty, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "commit inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "inventory commit exceeds reservation").WithDetails(map[string]any{
			"product_id": productID,
			"qty":        qty,
		})
	}
	return nil
}

// Repository reads and writes inventory rows outside the movement paths.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByProduct returns the inventory row for the product.
func (r *Repository) FindByProduct(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByProductTx reads the row inside an open transaction.
func (r *Repository) FindByProductTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.InventoryItem, error) {
	if tx == nil {
		return r.FindByProduct(ctx, productID)
	}
	var item models.InventoryItem
	if err := tx.WithContext(ctx).First(&item, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// UpsertTx creates or replaces the inventory row for a product.
func (r *Repository) UpsertTx(ctx context.Context, tx *gorm.DB, item *models.InventoryItem) error {
	handle := r.db
	if tx != nil {
		handle = tx
	}
	return handle.WithContext(ctx).Save(item).Error
}

// LowStockRow pairs an inventory row with its product name for admin alerts.
type LowStockRow struct {
	ProductID         uuid.UUID `json:"product_id"`
	ProductName       string    `json:"product_name"`
	AvailableQty      int       `json:"available_qty"`
	ReservedQty       int       `json:"reserved_qty"`
	LowStockThreshold int       `json:"low_stock_threshold"`
}

// ListLowStock returns products at or below their low-stock threshold.
func (r *Repository) ListLowStock(ctx context.Context) ([]LowStockRow, error) {
	var rows []LowStockRow
	err := r.db.WithContext(ctx).
		Table("inventory_items i").
		Select("i.product_id, p.name AS product_name, i.available_qty, i.reserved_qty, i.low_stock_threshold").
		Joins("JOIN products p ON p.id = i.product_id").
		Where("i.available_qty <= i.low_stock_threshold").
		Order("i.available_qty ASC").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AdjustInput is the admin stock correction payload.
type AdjustInput struct {
	ProductID         uuid.UUID
	QtyDelta          int
	LowStockThreshold *int
}

// Adjust applies a relative stock correction. The conditional UPDATE keeps
// available_qty from going negative under concurrent adjustments.
func (r *Repository) Adjust(ctx context.Context, input AdjustInput) (*models.InventoryItem, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.LowStockThreshold != nil && *input.LowStockThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "low_stock_threshold must be non-negative")
	}

	if input.QtyDelta != 0 {
		res := r.db.WithContext(ctx).Exec(`
			UPDATE inventory_items
			SET available_qty = available_qty + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE product_id = ? AND available_qty + ? >= reserved_qty
		`, input.QtyDelta, input.ProductID, input.QtyDelta)
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust inventory")
		}
		if res.RowsAffected == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "adjustment would drop stock below reservations")
		}
	}

	if input.LowStockThreshold != nil {
		res := r.db.WithContext(ctx).
			Model(&models.InventoryItem{}).
			Where("product_id = ?", input.ProductID).
			Update("low_stock_threshold", *input.LowStockThreshold)
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update threshold")
		}
	}

	item, err := r.FindByProduct(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory row not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	return item, nil
}

// Stock bundles the movement and query sides into the single dependency the
// wiring hands out. The demo fixture store exposes the same surface.
type Stock struct {
	*Manager
	*Repository
}
