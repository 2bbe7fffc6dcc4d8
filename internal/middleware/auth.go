// Package middleware gates protected routes on a Bearer access token.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/snaptranslate/auth-service/internal/tokens"
)

const (
	subjectKey = "auth.subject"
	rolesKey   = "auth.roles"
)

type Auth struct {
	Issuer *tokens.Issuer
}

func New(issuer *tokens.Issuer) *Auth { return &Auth{Issuer: issuer} }

func (a *Auth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		claims, err := a.Issuer.VerifyAccess(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		c.Set(subjectKey, claims.Subject)
		c.Set(rolesKey, claims.Roles)
		return next(c)
	}
}

// RequireAdmin must run after RequireAuth.
func (a *Auth) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		for _, role := range Roles(c) {
			if role == "admin" {
				return next(c)
			}
		}
		return echo.NewHTTPError(http.StatusForbidden, "admin role required")
	}
}

func Subject(c echo.Context) string {
	if s, ok := c.Get(subjectKey).(string); ok {
		return s
	}
	return ""
}

func Roles(c echo.Context) []string {
	if r, ok := c.Get(rolesKey).([]string); ok {
		return r
	}
	return nil
}
