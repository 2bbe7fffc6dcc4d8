package tokens

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// AccessClaims is the closed claim set of an access token.
type AccessClaims struct {
	Roles     []string `json:"roles"`
	TokenType string   `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the closed claim set of a refresh token. The jti
// lives in RegisteredClaims.ID and keys the whitelist registry.
type RefreshClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

func NewJTI() string { return uuid.NewString() }
