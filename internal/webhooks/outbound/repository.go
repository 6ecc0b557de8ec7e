package outboundwebhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
)

// Repository persists webhook subscriptions and their delivery log.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateSubscription(ctx context.Context, sub *models.WebhookSubscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(sub).Error
}

// SaveSubscription writes the full row back. Callers load, mutate, save.
func (r *Repository) SaveSubscription(ctx context.Context, sub *models.WebhookSubscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *Repository) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.WebhookSubscription{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "webhook subscription not found")
	}
	return nil
}

func (r *Repository) FindSubscription(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
	var sub models.WebhookSubscription
	err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) ListSubscriptions(ctx context.Context) ([]models.WebhookSubscription, error) {
	var subs []models.WebhookSubscription
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&subs).
		Error
	return subs, err
}

// ListActiveSubscriptions returns every enabled endpoint. Event-type
// filtering happens in Go via WantsEvent so the predicate stays portable
// across the Postgres text[] column and the SQLite demo driver.
func (r *Repository) ListActiveSubscriptions(ctx context.Context) ([]models.WebhookSubscription, error) {
	var subs []models.WebhookSubscription
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&subs).
		Error
	return subs, err
}

func (r *Repository) CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error {
	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(delivery).Error
}

// HasDelivery reports whether the event already fanned out to the
// subscription, so a reprocessed outbox row cannot double-post.
func (r *Repository) HasDelivery(ctx context.Context, subscriptionID, eventID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WebhookDelivery{}).
		Where("subscription_id = ? AND event_id = ?", subscriptionID, eventID).
		Count(&count).
		Error
	return count > 0, err
}

func (r *Repository) FindDelivery(ctx context.Context, id uuid.UUID) (*models.WebhookDelivery, error) {
	var delivery models.WebhookDelivery
	err := r.db.WithContext(ctx).First(&delivery, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// DeliveryListResult is one cursor page of the delivery log.
type DeliveryListResult struct {
	Deliveries []models.WebhookDelivery `json:"deliveries"`
	NextCursor string                   `json:"next_cursor,omitempty"`
}

// ListDeliveries pages the subscription's delivery log newest first.
func (r *Repository) ListDeliveries(ctx context.Context, subscriptionID uuid.UUID, page pagination.Params) (*DeliveryListResult, error) {
	pageSize := pagination.NormalizeLimit(page.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(page.Limit)

	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	qb := r.db.WithContext(ctx).
		Model(&models.WebhookDelivery{}).
		Where("subscription_id = ?", subscriptionID)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.WebhookDelivery
	err = qb.Order("created_at DESC").
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
	return &DeliveryListResult{Deliveries: rows, NextCursor: nextCursor}, nil
}

// AttemptOutcome is what one POST attempt left behind on the delivery row.
type AttemptOutcome struct {
	Status         enums.WebhookDeliveryStatus
	ResponseStatus *int
	Error          *string
	DeliveredAt    *time.Time
}

// RecordAttempt folds an attempt into the delivery row.
func (r *Repository) RecordAttempt(ctx context.Context, deliveryID uuid.UUID, outcome AttemptOutcome) error {
	updates := map[string]any{
		"status":          outcome.Status,
		"attempt_count":   gorm.Expr("attempt_count + 1"),
		"response_status": outcome.ResponseStatus,
		"last_error":      outcome.Error,
		"updated_at":      gorm.Expr("CURRENT_TIMESTAMP"),
	}
	if outcome.DeliveredAt != nil {
		updates["delivered_at"] = *outcome.DeliveredAt
	}
	res := r.db.WithContext(ctx).
		Model(&models.WebhookDelivery{}).
		Where("id = ?", deliveryID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "webhook delivery not found")
	}
	return nil
}

// ResetFailureCount clears the subscription's failure streak after a
// successful delivery.
func (r *Repository) ResetFailureCount(ctx context.Context, subscriptionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookSubscription{}).
		Where("id = ? AND failure_count > 0", subscriptionID).
		Updates(map[string]any{
			"failure_count": 0,
			"updated_at":    gorm.Expr("CURRENT_TIMESTAMP"),
		}).
		Error
}

// RecordFailure bumps the subscription's failure streak and disables the
// endpoint once the streak reaches the cap. Reports whether this call
// disabled it.
func (r *Repository) RecordFailure(ctx context.Context, subscriptionID uuid.UUID, failureCap int) (bool, error) {
	disabled := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.WebhookSubscription{}).
			Where("id = ?", subscriptionID).
			Updates(map[string]any{
				"failure_count": gorm.Expr("failure_count + 1"),
				"updated_at":    gorm.Expr("CURRENT_TIMESTAMP"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "webhook subscription not found")
		}
		if failureCap <= 0 {
			return nil
		}
		res = tx.Model(&models.WebhookSubscription{}).
			Where("id = ? AND is_active = ? AND failure_count >= ?", subscriptionID, true, failureCap).
			Updates(map[string]any{
				"is_active":   false,
				"disabled_at": gorm.Expr("CURRENT_TIMESTAMP"),
				"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
			})
		if res.Error != nil {
			return res.Error
		}
		disabled = res.RowsAffected > 0
		return nil
	})
	return disabled, err
}

// DeleteDeliveriesBefore trims the delivery log for the retention sweep.
func (r *Repository) DeleteDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.WebhookDelivery{})
	return res.RowsAffected, res.Error
}
