package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mieldesol/modhu-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	ActorID uuid.UUID
	Role    enums.ActorRole
	Email   string
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to storefront customers
// and back-office users alike; Role distinguishes them.
type AccessTokenClaims struct {
	ActorID uuid.UUID       `json:"actor_id"`
	Role    enums.ActorRole `json:"role"`
	Email   string          `json:"email,omitempty"`
	jwt.RegisteredClaims
}
