// Package idempotency guards event consumers against redelivery. The outbox
// dispatcher retries until a consumer acknowledges, so every consumer must
// tolerate seeing the same event twice; this package makes that a one-call
// check backed by Redis SETNX.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/pkg/redis"
)

// Manager tracks processed event IDs per consumer. Keys follow the
// `mh:idempotency:evt:processed:<consumer>:<event_id>` pattern and expire
// after the configured TTL, which bounds the window in which a replayed
// event is suppressed.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds an idempotency guard. A zero TTL stores marks without
// expiry.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// CheckAndMarkProcessed claims the event for this consumer. The first caller
// gets false and owns the work; later callers for the same event ID get true
// and must skip it.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Release un-marks an event whose processing failed after the claim, so the
// dispatcher's retry is not swallowed by the guard.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	scope := fmt.Sprintf("evt:processed:%s", consumer)
	return m.store.IdempotencyKey(scope, eventID.String()), nil
}
