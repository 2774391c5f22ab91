package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/avolkov/booklend/internal/token"
)

type Middleware struct {
	JWTSecret []byte
}

// RequireLogin authenticates the request from either the session cookie or a
// bearer header, both carry the same token. Identity and role land in the
// echo context for handlers downstream.
func (m *Middleware) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := tokenFromRequest(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}

		claims, err := token.Parse(raw, m.JWTSecret)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		setUserContext(c, claims)
		return next(c)
	}
}

func tokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}
