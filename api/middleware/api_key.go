package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mieldesol/modhu-backend/api/responses"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
)

const apiKeyHeader = "X-API-Key"

// APIKeyOr admits automation clients presenting a configured API key and
// hands everything else to the fallback middleware (normally Auth). A valid
// key grants admin-level access, so the key list belongs in a secret store.
func APIKeyOr(keys []string, fallback func(http.Handler) http.Handler, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		guarded := next
		if fallback != nil {
			guarded = fallback(next)
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := strings.TrimSpace(r.Header.Get(apiKeyHeader))
			if presented == "" {
				guarded.ServeHTTP(w, r)
				return
			}

			if !matchAPIKey(keys, presented) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxRole, string(enums.ActorRoleAdmin))
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{"auth_method": "api_key"})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// matchAPIKey checks every configured key so a miss costs the same as a hit.
func matchAPIKey(keys []string, presented string) bool {
	match := false
	for _, key := range keys {
		if key == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(presented)) == 1 {
			match = true
		}
	}
	return match
}
