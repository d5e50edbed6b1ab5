package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	authpkg "github.com/octobees/contact-enricher/internal/auth"
)

// JWT validates bearer tokens and stores the caller identity in the request context.
func JWT(manager *authpkg.JWTManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return unauthorized(c, "missing authorization header")
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				return unauthorized(c, "invalid authorization header")
			}

			claims, err := manager.ParseToken(strings.TrimSpace(token))
			if err != nil {
				return unauthorized(c, "invalid token")
			}

			c.Set(ContextKeyClientID, claims.Subject)
			c.Set(ContextKeyRole, claims.Role)
			return next(c)
		}
	}
}

// ClientIDFromContext returns the authenticated client id, if any.
func ClientIDFromContext(c echo.Context) string {
	if val, ok := c.Get(ContextKeyClientID).(string); ok {
		return val
	}
	return ""
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"status": "error", "message": message})
}
