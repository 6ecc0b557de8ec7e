package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/pkg/logger"
)

const (
	sessionHeader = "X-Session-Id"
	sessionCookie = "mh_session"
)

// CartSession resolves the anonymous storefront session used to key the cart.
// The identifier comes from the X-Session-Id header when the caller is an SPA,
// falls back to the session cookie, and is minted fresh when neither is set.
// The resolved id is echoed on both channels so either kind of client can
// hold on to it.
func CartSession(ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(sessionHeader))
			if sessionID == "" {
				if cookie, err := r.Cookie(sessionCookie); err == nil {
					sessionID = strings.TrimSpace(cookie.Value)
				}
			}
			if _, err := uuid.Parse(sessionID); err != nil {
				sessionID = uuid.NewString()
			}

			w.Header().Set(sessionHeader, sessionID)
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   int(ttl.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := context.WithValue(r.Context(), ctxSessionID, sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
