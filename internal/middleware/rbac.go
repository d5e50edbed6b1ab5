package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	authpkg "github.com/octobees/contact-enricher/internal/auth"
)

// RequireRole enforces that the authenticated caller holds role. Admin
// tokens pass every role check.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value, ok := c.Get(ContextKeyRole).(string)
			if !ok || value == "" {
				return c.JSON(http.StatusForbidden, map[string]string{"status": "error", "message": "missing role"})
			}
			claims := authpkg.Claims{Role: value}
			if !claims.HasRole(role) {
				return c.JSON(http.StatusForbidden, map[string]string{"status": "error", "message": "insufficient permissions"})
			}
			return next(c)
		}
	}
}
