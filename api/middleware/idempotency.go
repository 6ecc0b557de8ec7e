package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/mieldesol/modhu-backend/api/responses"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	pkgredis "github.com/mieldesol/modhu-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour

	// replayHeader marks a response served from a stored record rather
	// than a fresh handler execution.
	replayHeader = "Idempotent-Replayed"
)

type idempotencyRule struct {
	method  string
	pattern string
	ttl     time.Duration
}

// Rules are keyed by the chi route pattern, not the request path, so a
// single entry covers every order regardless of its id. Money-moving
// endpoints keep their stored outcome for a week; the rest for a day.
var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, pattern: "/api/v1/auth/register", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/admin/v1/products", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/admin/v1/categories", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/admin/v1/products/{productId}/image", ttl: defaultIdempotencyTTL},
	{method: http.MethodPut, pattern: "/api/admin/v1/inventory/{productId}", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/admin/v1/promotions", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/admin/v1/webhooks", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/admin/v1/webhooks/deliveries/{deliveryId}/redeliver", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/admin/v1/orders/{orderId}/resend-confirmation", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/v1/checkout", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/admin/v1/orders/{orderId}/fulfil", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/admin/v1/orders/{orderId}/cancel", ttl: criticalIdempotencyTTL},
}

type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key
// on guarded routes. Reusing a key with a different request body is a
// conflict, not a replay.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, resolveRoutePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if idempotencyKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashBody(body)
			scope := buildScope(r)
			key := store.IdempotencyKey(scope, idempotencyKey)

			if stored, getErr := store.Get(r.Context(), key); getErr != nil && !errors.Is(getErr, redis.Nil) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, getErr, "check idempotency"))
				return
			} else if stored != "" {
				record, decodeErr := decodeRecord(stored)
				if decodeErr != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode idempotency record"))
					return
				}
				if record.RequestHash != requestHash {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				writeStoredResponse(w, record)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// A 5xx outcome is transient, not a result worth pinning for
			// the whole TTL. The record is skipped so the client's retry
			// reaches the handler again.
			if rec.status >= http.StatusInternalServerError {
				return
			}

			record := idempotencyRecord{
				Status:      defaultStatus(rec.status),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				RequestHash: requestHash,
			}
			if ct := rec.Header().Get("Content-Type"); ct != "" {
				record.Headers = map[string]string{"Content-Type": ct}
			}

			payload, marshalErr := json.Marshal(record)
			if marshalErr != nil {
				logError(r.Context(), logg, "marshal idempotency record", marshalErr)
				return
			}

			if _, setErr := store.SetNX(r.Context(), key, string(payload), ttl); setErr != nil {
				logError(r.Context(), logg, "persist idempotency record", setErr)
			}
		})
	}
}

func buildScope(r *http.Request) string {
	parts := []string{
		ActorIDFromContext(r.Context()),
		SessionIDFromContext(r.Context()),
		r.Method,
		r.URL.Path,
	}
	return strings.Join(parts, "|")
}

func decodeRecord(payload string) (*idempotencyRecord, error) {
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func writeStoredResponse(w http.ResponseWriter, record *idempotencyRecord) {
	if record == nil {
		return
	}
	if ct, ok := record.Headers["Content-Type"]; ok && ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set(replayHeader, "true")
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func defaultStatus(value int) int {
	if value == 0 {
		return http.StatusOK
	}
	return value
}

// resolveRoutePattern matches the request against the routing tree from
// the root and returns the full leaf pattern, e.g.
// /api/admin/v1/orders/{orderId}/cancel. Middleware runs before the
// router has matched the leaf, so Context.RoutePattern would report only
// the mounts walked so far (such as /api/admin/v1/*) and never line up
// with the rule table.
func resolveRoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return r.URL.Path
	}
	tctx := chi.NewRouteContext()
	if !rctx.Routes.Match(tctx, r.Method, r.URL.Path) {
		return ""
	}
	return tctx.RoutePattern()
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.pattern == pattern {
			return rule.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
