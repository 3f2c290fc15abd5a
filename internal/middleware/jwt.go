package middleware // contains reusable HTTP middleware functions

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-garden-api/internal/auth"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// through the token service and injects the subject's id and nickname into
// the request context.  Handlers read them via c.Get("user_id") (uint64)
// and c.Get("nickname").  Expired and otherwise-invalid tokens are
// distinguished in the response body so clients know whether to refresh
// or to re-login.
func JWTAuth(tokens *auth.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims, err := tokens.VerifyAccess(raw)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token expired"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set("user_id", claims.UserID)
			c.Set("nickname", claims.Nickname)
			return next(c)
		}
	}
}
