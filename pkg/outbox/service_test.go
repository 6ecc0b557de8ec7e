package outbox

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	"github.com/mieldesol/modhu-backend/pkg/logger"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func testOutboxLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "outbox-test",
		Level:       logger.ParseLevel("debug"),
		Output:      io.Discard,
	})
}

func TestEmitWritesVersionedEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), testOutboxLogger())

	orderID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          map[string]any{"order_id": orderID.String()},
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, enums.EventOrderCreated, row.EventType)
	assert.Equal(t, orderID, row.AggregateID)
	assert.Nil(t, row.PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.False(t, envelope.OccurredAt.IsZero())

	var data map[string]string
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, orderID.String(), data["order_id"])
}

func TestEmitRejectsMalformedEvents(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), testOutboxLogger())

	events := []DomainEvent{
		{AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Data: "x"},
		{EventType: enums.EventOrderCreated, AggregateID: uuid.New(), Data: "x"},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, Data: "x"},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New()},
	}

	for _, event := range events {
		err := db.Transaction(func(tx *gorm.DB) error {
			return svc.Emit(context.Background(), tx, event)
		})
		require.Error(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(setupOutboxTestDB(t)), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          "x",
	})
	require.Error(t, err)
}
