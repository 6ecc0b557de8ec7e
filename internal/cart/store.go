package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
)

// DefaultTTL keeps abandoned carts around for a week; every write refreshes
// the window.
const DefaultTTL = 7 * 24 * time.Hour

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionID string) string
}

// Store reads and writes cart blobs in Redis keyed by session ID.
type Store struct {
	redis redisStore
	ttl   time.Duration
}

// NewStore builds the Redis cart store.
func NewStore(client redisStore, ttl time.Duration) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{redis: client, ttl: ttl}, nil
}

// Load returns the session's cart, or nil when none exists yet.
func (s *Store) Load(ctx context.Context, sessionID string) (*Cart, error) {
	raw, err := s.redis.Get(ctx, s.redis.CartKey(sessionID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	var cart Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart")
	}
	return &cart, nil
}

// Save writes the cart blob and refreshes its TTL.
func (s *Store) Save(ctx context.Context, cart *Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.redis.Set(ctx, s.redis.CartKey(cart.SessionID), payload, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

// Delete removes the session's cart.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.redis.CartKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart")
	}
	return nil
}
