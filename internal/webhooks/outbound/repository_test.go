package outboundwebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
)

func setupOutboundTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE webhook_subscriptions (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			description TEXT,
			secret TEXT NOT NULL,
			event_types TEXT NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT true,
			failure_count INTEGER NOT NULL DEFAULT 0,
			disabled_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE webhook_deliveries (
			id TEXT PRIMARY KEY,
			subscription_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempt_count INTEGER NOT NULL DEFAULT 0,
			response_status INTEGER,
			last_error TEXT,
			delivered_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedSubscription(t *testing.T, db *gorm.DB, eventTypes ...string) *models.WebhookSubscription {
	t.Helper()

	sub := &models.WebhookSubscription{
		ID:         uuid.New(),
		URL:        "https://hooks.example.com/modhu",
		Secret:     "whsec_test",
		EventTypes: pq.StringArray(eventTypes),
		IsActive:   true,
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func seedDelivery(t *testing.T, db *gorm.DB, subscriptionID uuid.UUID, createdAt time.Time) *models.WebhookDelivery {
	t.Helper()

	delivery := &models.WebhookDelivery{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		EventID:        uuid.New(),
		EventType:      enums.EventOrderPaid,
		Payload:        json.RawMessage(`{"version":1}`),
		Status:         enums.WebhookDeliveryStatusPending,
		CreatedAt:      createdAt,
	}
	require.NoError(t, db.Create(delivery).Error)
	return delivery
}

func TestRepositorySubscriptionLifecycle(t *testing.T) {
	db := setupOutboundTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sub := &models.WebhookSubscription{
		URL:        "https://hooks.example.com/orders",
		Secret:     "whsec_lifecycle",
		EventTypes: pq.StringArray{string(enums.EventOrderPaid)},
		IsActive:   true,
	}
	require.NoError(t, repo.CreateSubscription(ctx, sub))
	require.NotEqual(t, uuid.Nil, sub.ID)

	found, err := repo.FindSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/orders", found.URL)
	assert.Equal(t, []string{string(enums.EventOrderPaid)}, []string(found.EventTypes))

	found.URL = "https://hooks.example.com/orders/v2"
	require.NoError(t, repo.SaveSubscription(ctx, found))
	reloaded, err := repo.FindSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/orders/v2", reloaded.URL)

	all, err := repo.ListSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.DeleteSubscription(ctx, sub.ID))
	err = repo.DeleteSubscription(ctx, sub.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepositoryListActiveSubscriptions(t *testing.T) {
	db := setupOutboundTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	active := seedSubscription(t, db)
	disabled := seedSubscription(t, db)
	require.NoError(t, db.Model(&models.WebhookSubscription{}).
		Where("id = ?", disabled.ID).
		Update("is_active", false).Error)

	subs, err := repo.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, active.ID, subs[0].ID)
}

func TestRepositoryHasDelivery(t *testing.T) {
	db := setupOutboundTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sub := seedSubscription(t, db)
	delivery := seedDelivery(t, db, sub.ID, time.Now().UTC())

	exists, err := repo.HasDelivery(ctx, sub.ID, delivery.EventID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.HasDelivery(ctx, sub.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.HasDelivery(ctx, uuid.New(), delivery.EventID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepositoryRecordAttempt(t *testing.T) {
	db := setupOutboundTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sub := seedSubscription(t, db)
	delivery := seedDelivery(t, db, sub.ID, time.Now().UTC())

	okStatus := 200
	deliveredAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.RecordAttempt(ctx, delivery.ID, AttemptOutcome{
		Status:         enums.WebhookDeliveryStatusDelivered,
		ResponseStatus: &okStatus,
		DeliveredAt:    &deliveredAt,
	}))

	row, err := repo.FindDelivery(ctx, delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.WebhookDeliveryStatusDelivered, row.Status)
	assert.Equal(t, 1, row.AttemptCount)
	require.NotNil(t, row.ResponseStatus)
	assert.Equal(t, 200, *row.ResponseStatus)
	require.NotNil(t, row.DeliveredAt)
	assert.Nil(t, row.LastError)

	badStatus := 503
	message := "endpoint returned status 503"
	require.NoError(t, repo.RecordAttempt(ctx, delivery.ID, AttemptOutcome{
		Status:         enums.WebhookDeliveryStatusFailed,
		ResponseStatus: &badStatus,
		Error:          &message,
	}))

	row, err = repo.FindDelivery(ctx, delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.WebhookDeliveryStatusFailed, row.Status)
	assert.Equal(t, 2, row.AttemptCount)
	require.NotNil(t, row.LastError)
	assert.Equal(t, message, *row.LastError)

	err = repo.RecordAttempt(ctx, uuid.New(), AttemptOutcome{Status: enums.WebhookDeliveryStatusFailed})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepositoryFailureStreak(t *testing.T) {
	db := setupOutboundTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sub := seedSubscription(t, db)
	failureCap := 3

	for i := 1; i < failureCap; i++ {
		disabled, err := repo.RecordFailure(ctx, sub.ID, failureCap)
		require.NoError(t, err)
		assert.False(t, disabled, "streak of %d should not disable yet", i)
	}

	disabled, err := repo.RecordFailure(ctx, sub.ID, failureCap)
	require.NoError(t, err)
	assert.True(t, disabled)

	row, err := repo.FindSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, row.IsActive)
	assert.Equal(t, failureCap, row.FailureCount)
	assert.NotNil(t, row.DisabledAt)

	// Already disabled: the streak keeps counting but nothing flips again.
	disabled, err = repo.RecordFailure(ctx, sub.ID, failureCap)
	require.NoError(t, err)
	assert.False(t, disabled)

	_, err = repo.RecordFailure(ctx, uuid.New(), failureCap)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepositoryResetFailureCount(t *testing.T) {
	db := setupOutboundTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sub := seedSubscription(t, db)
	_, err := repo.RecordFailure(ctx, sub.ID, 10)
	require.NoError(t, err)
	_, err = repo.RecordFailure(ctx, sub.ID, 10)
	require.NoError(t, err)

	require.NoError(t, repo.ResetFailureCount(ctx, sub.ID))

	row, err := repo.FindSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, row.FailureCount)
	assert.True(t, row.IsActive)
}

func TestRepositoryListDeliveriesPagination(t *testing.T) {
	db := setupOutboundTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sub := seedSubscription(t, db)
	other := seedSubscription(t, db)

	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	var newest *models.WebhookDelivery
	for i := 0; i < 5; i++ {
		newest = seedDelivery(t, db, sub.ID, base.Add(time.Duration(i)*time.Minute))
	}
	seedDelivery(t, db, other.ID, base.Add(time.Hour))

	page, err := repo.ListDeliveries(ctx, sub.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Deliveries, 2)
	assert.Equal(t, newest.ID, page.Deliveries[0].ID)
	require.NotEmpty(t, page.NextCursor)

	page, err = repo.ListDeliveries(ctx, sub.ID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Deliveries, 2)
	require.NotEmpty(t, page.NextCursor)

	page, err = repo.ListDeliveries(ctx, sub.ID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Deliveries, 1)
	assert.Empty(t, page.NextCursor)

	_, err = repo.ListDeliveries(ctx, sub.ID, pagination.Params{Cursor: "not-base64"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestRepositoryDeleteDeliveriesBefore(t *testing.T) {
	db := setupOutboundTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sub := seedSubscription(t, db)
	cutoff := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	seedDelivery(t, db, sub.ID, cutoff.Add(-48*time.Hour))
	seedDelivery(t, db, sub.ID, cutoff.Add(-time.Hour))
	kept := seedDelivery(t, db, sub.ID, cutoff.Add(time.Hour))

	removed, err := repo.DeleteDeliveriesBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	page, err := repo.ListDeliveries(ctx, sub.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Deliveries, 1)
	assert.Equal(t, kept.ID, page.Deliveries[0].ID)
}
