package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/enums"
)

// WebhookSubscription is an outbound endpoint registered by an integration.
// After FailureCount reaches the configured cap the dispatcher flips
// IsActive off and stamps DisabledAt.
type WebhookSubscription struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	URL          string         `gorm:"column:url;not null"`
	Description  *string        `gorm:"column:description"`
	Secret       string         `gorm:"column:secret;not null"`
	EventTypes   pq.StringArray `gorm:"column:event_types;type:text[];not null;default:'{}'"`
	IsActive     bool           `gorm:"column:is_active;not null;default:true"`
	FailureCount int            `gorm:"column:failure_count;not null;default:0"`
	DisabledAt   *time.Time     `gorm:"column:disabled_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the ID so inserts behave the same on Postgres and
// SQLite.
func (s *WebhookSubscription) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// WantsEvent reports whether the subscription listens for the event type.
// An empty filter list subscribes to everything.
func (s WebhookSubscription) WantsEvent(eventType enums.OutboxEventType) bool {
	if len(s.EventTypes) == 0 {
		return true
	}
	for _, candidate := range s.EventTypes {
		if candidate == string(eventType) {
			return true
		}
	}
	return false
}

// WebhookDelivery records one event posted to one subscription.
type WebhookDelivery struct {
	ID             uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	SubscriptionID uuid.UUID                   `gorm:"column:subscription_id;type:uuid;not null;index"`
	EventID        uuid.UUID                   `gorm:"column:event_id;type:uuid;not null"`
	EventType      enums.OutboxEventType       `gorm:"column:event_type;type:text;not null"`
	Payload        json.RawMessage             `gorm:"column:payload;type:jsonb;not null"`
	Status         enums.WebhookDeliveryStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	AttemptCount   int                         `gorm:"column:attempt_count;not null;default:0"`
	ResponseStatus *int                        `gorm:"column:response_status"`
	LastError      *string                     `gorm:"column:last_error"`
	DeliveredAt    *time.Time                  `gorm:"column:delivered_at"`
	CreatedAt      time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *WebhookDelivery) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
