package auth

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/avolkov/booklend/internal/token"
)

const CookieName = "token"

func setUserContext(c echo.Context, claims *token.Claims) {
	if id, err := strconv.ParseUint(claims.Subject, 10, 64); err == nil {
		c.Set("userID", uint(id))
	}
	c.Set("username", claims.Username)
	c.Set("role", claims.Role)
}

func Username(c echo.Context) string {
	if v, ok := c.Get("username").(string); ok {
		return v
	}
	return ""
}

func Role(c echo.Context) string {
	if v, ok := c.Get("role").(string); ok {
		return v
	}
	return ""
}
