package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the authenticated caller as asserted by the identity provider.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

// Claims are the access token claims issued by the identity provider. The
// subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}
