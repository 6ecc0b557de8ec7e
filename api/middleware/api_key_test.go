package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mieldesol/modhu-backend/pkg/enums"
)

func denyAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
}

func TestAPIKeyOrFallsBackWithoutHeader(t *testing.T) {
	handler := APIKeyOr([]string{"sk-live-1"}, denyAll, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected fallback 401 got %d", rec.Code)
	}
}

func TestAPIKeyOrRejectsUnknownKey(t *testing.T) {
	handlerCalled := false
	handler := APIKeyOr([]string{"sk-live-1"}, denyAll, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req.Header.Set("X-API-Key", "sk-live-wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if handlerCalled {
		t.Fatal("handler should not run with a bad key")
	}
}

func TestAPIKeyOrAdmitsConfiguredKey(t *testing.T) {
	var role string
	handler := APIKeyOr([]string{"sk-live-1", "sk-live-2"}, denyAll, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req.Header.Set("X-API-Key", "sk-live-2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if role != string(enums.ActorRoleAdmin) {
		t.Fatalf("expected admin role for api key caller, got %q", role)
	}
}

func TestAPIKeyOrWithoutFallbackAllowsAnonymous(t *testing.T) {
	handler := APIKeyOr([]string{"sk-live-1"}, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}
