package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const guardProvider = "stripe"

type eventClaimStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	PaymentEventKey(provider, eventID string) string
}

// IdempotencyGuard claims provider event IDs in Redis so webhook replays and
// concurrent retries process each event once.
type IdempotencyGuard struct {
	store eventClaimStore
	ttl   time.Duration
}

func NewIdempotencyGuard(store eventClaimStore, ttl time.Duration) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &IdempotencyGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark claims the event ID, reporting true when another delivery
// already holds it.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.PaymentEventKey(guardProvider, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release frees a claimed event ID after processing failed so the provider's
// retry can take another run at it.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.PaymentEventKey(guardProvider, eventID))
}
