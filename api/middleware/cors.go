package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",         // storefront local dev
	"http://localhost:3001",         // back-office local dev
	"https://mieldesol.com",         // production storefront
	"https://www.mieldesol.com",     // production storefront
	"https://admin.mieldesol.com",   // back-office
	"https://staging.mieldesol.com", // staging storefront
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   defaultCORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-MH-Token", "X-Session-Id", "X-API-Key", "Idempotency-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-MH-Token", "X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
