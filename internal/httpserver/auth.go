package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snaptranslate/auth-service/internal/logging"
	"github.com/snaptranslate/auth-service/internal/middleware"
	"github.com/snaptranslate/auth-service/internal/service"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func tokenJSON(c echo.Context, pair *service.TokenPair) error {
	c.SetCookie(refreshCookie(pair.RefreshToken))
	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	})
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.Register(ctx, req.Email, req.Username, req.Password); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "verification code sent, check your email",
	})
}

func (h *AuthHTTP) VerifyEmail(c echo.Context) error {
	ctx := c.Request().Context()
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Svc.VerifyEmail(ctx, req.Email, req.OTP)
	if err != nil {
		return httpError(err)
	}
	return tokenJSON(c, pair)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	var req struct {
		// Either an email address or a username.
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Svc.Login(ctx, req.Identifier, req.Password)
	if err != nil {
		return httpError(err)
	}
	return tokenJSON(c, pair)
}

// Refresh accepts the token from the cookie, falling back to the body
// for non-browser clients.
func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	raw := ""
	if cookie, err := c.Cookie(refreshCookieName); err == nil {
		raw = cookie.Value
	}
	if raw == "" {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.Bind(&req); err == nil {
			raw = req.RefreshToken
		}
	}
	if raw == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	pair, err := h.Svc.Refresh(ctx, raw)
	if err != nil {
		return httpError(err)
	}
	return tokenJSON(c, pair)
}

// Logout always clears the cookie, even when the token is missing or
// unusable.
func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	raw := ""
	if cookie, err := c.Cookie(refreshCookieName); err == nil {
		raw = cookie.Value
	}
	if err := h.Svc.Logout(ctx, raw); err != nil {
		c.SetCookie(clearRefreshCookie())
		l.Error("logout_revoke_failed", "error", err)
		return httpError(err)
	}

	c.SetCookie(clearRefreshCookie())
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) RequestResetOTP(c echo.Context) error {
	ctx := c.Request().Context()
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.RequestPasswordReset(ctx, req.Email); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "reset code sent, check your email",
	})
}

func (h *AuthHTTP) VerifyResetOTP(c echo.Context) error {
	ctx := c.Request().Context()
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.VerifyPasswordResetOTP(ctx, req.Email, req.OTP); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "code verified"})
}

func (h *AuthHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	var req struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.ResetPassword(ctx, req.Email, req.OTP, req.NewPassword); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password reset"})
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	var req struct {
		Email       string `json:"email"`
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.ChangePassword(ctx, req.Email, req.OldPassword, req.NewPassword); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

func (h *AuthHTTP) CheckOldPassword(c echo.Context) error {
	ctx := c.Request().Context()
	var req struct {
		Email       string `json:"email"`
		OldPassword string `json:"old_password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	valid, err := h.Svc.CheckOldPassword(ctx, req.Email, req.OldPassword)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": valid})
}

func (h *AuthHTTP) CheckAvailability(c echo.Context) error {
	ctx := c.Request().Context()
	field := c.QueryParam("field")
	value := c.QueryParam("value")

	available, err := h.Svc.CheckAvailability(ctx, field, value)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"available": available})
}

func (h *AuthHTTP) Profile(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := h.Svc.Profile(ctx, middleware.Subject(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}
