package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
)

// Store is the persistence surface for orders. Unlike the catalog and
// promotion stores there is no in-memory variant: demo mode runs this same
// implementation against the SQLite driver.
type Store interface {
	WithTx(tx *gorm.DB) Store

	// CreateTx inserts the order and its line items. The caller assigns
	// Number via NextNumberTx inside the same transaction.
	CreateTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Order, error)
	NextNumberTx(ctx context.Context, tx *gorm.DB) (int64, error)

	// SetCheckoutSession attaches the payment session id once it has been
	// created with the gateway. Checkout calls this after the order row is
	// committed, so it runs outside the creating transaction.
	SetCheckoutSession(ctx context.Context, orderID uuid.UUID, checkoutSessionID string) error

	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumberAndEmail(ctx context.Context, number int64, email string) (*models.Order, error)
	FindByCheckoutSession(ctx context.Context, checkoutSessionID string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Params) (*ListResult, error)
	AdminList(ctx context.Context, input AdminListInput) (*ListResult, error)

	// Status transitions run as conditional UPDATEs so concurrent webhook
	// replays and admin actions cannot double-apply a transition.
	MarkPaidTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	MarkPaymentFailedTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	MarkFulfilledTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, trackingNumber *string) error
	MarkCancelledTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (enums.OrderStatus, error)

	// FindStalePending returns pending orders older than the cutoff for the
	// cron sweep that releases their reservations.
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*models.Order, error)
}
