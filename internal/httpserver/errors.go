package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snaptranslate/auth-service/internal/autherr"
)

// httpError maps the autherr taxonomy onto the wire contract. The
// 401-class answers never distinguish unknown users from wrong
// passwords, and internal causes never reach the client.
func httpError(err error) *echo.HTTPError {
	var ve *autherr.ValidationError
	var rl *autherr.RateLimitedError

	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.As(err, &rl):
		return echo.NewHTTPError(http.StatusTooManyRequests, echo.Map{
			"message":     "too many requests",
			"retry_after": rl.RetryAfter,
		})
	case errors.Is(err, autherr.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, autherr.ErrUnauthorized),
		errors.Is(err, autherr.ErrTokenMalformed),
		errors.Is(err, autherr.ErrTokenExpired),
		errors.Is(err, autherr.ErrWrongTokenType):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, autherr.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "email or username already taken")
	case errors.Is(err, autherr.ErrNoChallenge),
		errors.Is(err, autherr.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, autherr.ErrOTPExpired):
		return echo.NewHTTPError(http.StatusBadRequest, "code expired, request a new one")
	case errors.Is(err, autherr.ErrOTPMismatch):
		return echo.NewHTTPError(http.StatusBadRequest, "incorrect code")
	case errors.Is(err, autherr.ErrPasswordReuse):
		return echo.NewHTTPError(http.StatusBadRequest, "new password must differ from the current one")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
