package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/snaptranslate/auth-service/internal/service"
	"github.com/snaptranslate/auth-service/internal/stats"
)

type AdminHTTP struct {
	Svc *service.AuthService
}

func (h *AdminHTTP) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	skip, _ := strconv.Atoi(c.QueryParam("skip"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	users, err := h.Svc.ListUsers(ctx, skip, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

func (h *AdminHTTP) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()
	var req struct {
		Email    string   `json:"email"`
		IsBanned *bool    `json:"is_banned"`
		Roles    []string `json:"roles"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.UpdateUser(ctx, req.Email, req.IsBanned, req.Roles); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user updated"})
}

func (h *AdminHTTP) RecordStat(c echo.Context) error {
	ctx := c.Request().Context()
	var req stats.UsageStat
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	if err := h.Svc.RecordUsage(ctx, req); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "recorded"})
}

func (h *AdminHTTP) StatsSummary(c echo.Context) error {
	ctx := c.Request().Context()

	summary, err := h.Svc.UsageSummary(ctx)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"summary": summary})
}
