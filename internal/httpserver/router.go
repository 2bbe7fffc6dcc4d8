package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snaptranslate/auth-service/internal/middleware"
)

type Deps struct {
	Auth   *AuthHTTP
	Admin  *AdminHTTP
	AuthMw *middleware.Auth
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	auth := e.Group("/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/verify-email", d.Auth.VerifyEmail)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/logout", d.Auth.Logout)
	auth.POST("/request-reset-password-otp", d.Auth.RequestResetOTP)
	auth.POST("/verify-reset-password-otp", d.Auth.VerifyResetOTP)
	auth.POST("/reset-password", d.Auth.ResetPassword)
	auth.POST("/change-password", d.Auth.ChangePassword)
	auth.POST("/check-old-password", d.Auth.CheckOldPassword)
	auth.POST("/check-availability", d.Auth.CheckAvailability)
	auth.GET("/profile", d.Auth.Profile, d.AuthMw.RequireAuth)

	admin := e.Group("/admin", d.AuthMw.RequireAuth, d.AuthMw.RequireAdmin)
	admin.GET("/users", d.Admin.ListUsers)
	admin.PUT("/users", d.Admin.UpdateUser)
	admin.POST("/stats", d.Admin.RecordStat)
	admin.GET("/stats/summary", d.Admin.StatsSummary)
}
