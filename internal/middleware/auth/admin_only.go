package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminOnly stacks on RequireLogin; the role always comes from the verified
// token, never from anything the client asserts.
func (m *Middleware) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireLogin(func(c echo.Context) error {
		if Role(c) != "admin" {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return next(c)
	})
}
