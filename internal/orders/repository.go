package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/internal/customers"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
)

// Repository is the GORM-backed order store.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) Store {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// CreateTx inserts the order together with its line items. IDs are assigned
// here rather than by column default so the SQLite demo path works.
func (r *Repository) CreateTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "create order requires a transaction")
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	order.Email = customers.NormalizeEmail(order.Email)
	if err := tx.WithContext(ctx).Create(order).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create order")
	}
	return order, nil
}

// NextNumberTx allocates the next order number inside the transaction. The
// unique index on number catches the rare race between two checkouts; the
// losing transaction rolls back and the shopper retries.
func (r *Repository) NextNumberTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "order number requires a transaction")
	}
	var next int64
	err := tx.WithContext(ctx).
		Raw("SELECT COALESCE(MAX(number), 0) + 1 FROM orders").
		Scan(&next).
		Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: next order number")
	}
	return next, nil
}

// FindByID loads an order with its line items.
func (r *Repository) SetCheckoutSession(ctx context.Context, orderID uuid.UUID, checkoutSessionID string) error {
	trimmed := strings.TrimSpace(checkoutSessionID)
	if trimmed == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id required")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"checkout_session_id": trimmed,
			"updated_at":          gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByNumberAndEmail is the guest storefront lookup: the order number from
// the confirmation email plus the address it was sent to.
func (r *Repository) FindByNumberAndEmail(ctx context.Context, number int64, email string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("number = ?", number).
		Where("email = ?", customers.NormalizeEmail(email)).
		First(&order).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByCheckoutSession correlates a payment provider session to its order.
func (r *Repository) FindByCheckoutSession(ctx context.Context, checkoutSessionID string) (*models.Order, error) {
	trimmed := strings.TrimSpace(checkoutSessionID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id required")
	}
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "checkout_session_id = ?", trimmed).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByCustomer returns one cursor page of the customer's orders, newest
// first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Params) (*ListResult, error) {
	qb := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("customer_id = ?", customerID)
	return r.listPage(ctx, qb, page)
}

// AdminList returns one cursor page of all orders with optional status and
// email filters.
func (r *Repository) AdminList(ctx context.Context, input AdminListInput) (*ListResult, error) {
	qb := r.db.WithContext(ctx).Model(&models.Order{})
	if strings.TrimSpace(input.Status) != "" {
		status, err := enums.ParseOrderStatus(strings.TrimSpace(input.Status))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		qb = qb.Where("status = ?", status)
	}
	if strings.TrimSpace(input.Email) != "" {
		qb = qb.Where("email = ?", customers.NormalizeEmail(input.Email))
	}
	return r.listPage(ctx, qb, input.Pagination)
}

func (r *Repository) listPage(ctx context.Context, qb *gorm.DB, page pagination.Params) (*ListResult, error) {
	pageSize := pagination.NormalizeLimit(page.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(page.Limit)

	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	err = qb.Preload("Items").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limitWithBuffer).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	orders := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		orders = append(orders, *NewOrderDTO(&rows[i]))
	}
	return &ListResult{Orders: orders, NextCursor: nextCursor}, nil
}

// MarkPaidTx moves a pending order to paid and stamps paid_at. A failed
// payment has already released its reservations, so a late confirmation is
// rejected rather than re-counted.
func (r *Repository) MarkPaidTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	_, err := r.transitionTx(ctx, tx, orderID, enums.OrderStatusPaid, "paid_at",
		enums.OrderStatusPending)
	return err
}

// MarkPaymentFailedTx records an expired or rejected payment session.
func (r *Repository) MarkPaymentFailedTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	_, err := r.transitionTx(ctx, tx, orderID, enums.OrderStatusPaymentFailed, "",
		enums.OrderStatusPending)
	return err
}

// MarkFulfilledTx moves a paid order to fulfilled and attaches the tracking
// number when one is provided.
func (r *Repository) MarkFulfilledTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, trackingNumber *string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "order transition requires a transaction")
	}
	res := tx.WithContext(ctx).Exec(`
		UPDATE orders
		SET status = ?,
			fulfilled_at = CURRENT_TIMESTAMP,
			tracking_number = COALESCE(?, tracking_number),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, enums.OrderStatusFulfilled, trackingNumber, orderID, enums.OrderStatusPaid)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "db: mark order fulfilled")
	}
	if res.RowsAffected == 0 {
		return r.transitionConflict(ctx, tx, orderID, enums.OrderStatusFulfilled)
	}
	return nil
}

// MarkCancelledTx cancels the order and reports the status it held inside
// the transaction, so the caller can undo the matching stock movement even
// when the order changed hands since it was loaded. Valid from every
// non-terminal status.
func (r *Repository) MarkCancelledTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (enums.OrderStatus, error) {
	return r.transitionTx(ctx, tx, orderID, enums.OrderStatusCancelled, "cancelled_at",
		enums.OrderStatusPending, enums.OrderStatusPaid, enums.OrderStatusPaymentFailed)
}

// transitionTx re-reads the order status inside the transaction and applies
// a guarded UPDATE against that exact status, returning the from-state it
// matched. stampColumn, when set, gets CURRENT_TIMESTAMP alongside the
// transition.
func (r *Repository) transitionTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, to enums.OrderStatus, stampColumn string, from ...enums.OrderStatus) (enums.OrderStatus, error) {
	if tx == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "order transition requires a transaction")
	}

	var current models.Order
	err := tx.WithContext(ctx).
		Select("id", "status").
		First(&current, "id = ?", orderID).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order status")
	}

	allowed := false
	for _, status := range from {
		if status == current.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot transition").WithDetails(map[string]any{
			"order_id": orderID,
			"from":     current.Status,
			"to":       to,
		})
	}

	updates := map[string]any{
		"status":     to,
		"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
	}
	if stampColumn != "" {
		updates[stampColumn] = gorm.Expr("CURRENT_TIMESTAMP")
	}

	res := tx.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, current.Status).
		Updates(updates)
	if res.Error != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "db: order status transition")
	}
	if res.RowsAffected == 0 {
		// The order moved under us between the read and the write.
		return "", r.transitionConflict(ctx, tx, orderID, to)
	}
	return current.Status, nil
}

// transitionConflict distinguishes a missing order from an illegal
// transition after a guarded UPDATE matched nothing.
func (r *Repository) transitionConflict(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, to enums.OrderStatus) error {
	var current models.Order
	err := tx.WithContext(ctx).
		Select("id", "status").
		First(&current, "id = ?", orderID).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order status")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot transition").WithDetails(map[string]any{
		"order_id": orderID,
		"from":     current.Status,
		"to":       to,
	})
}

// FindStalePending returns pending orders created before the cutoff, oldest
// first, with items loaded so the caller can release their reservations.
func (r *Repository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	var rows []*models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ?", enums.OrderStatusPending).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: stale pending orders")
	}
	return rows, nil
}
