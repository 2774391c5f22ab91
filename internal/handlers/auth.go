package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avolkov/booklend/internal/hash"
	authmw "github.com/avolkov/booklend/internal/middleware/auth"
	"github.com/avolkov/booklend/internal/models"
	"github.com/avolkov/booklend/internal/mykafka"
	"github.com/avolkov/booklend/internal/repo"
	"github.com/avolkov/booklend/internal/token"
)

type AuthHandler struct {
	Users     *repo.UserRepo
	JWTSecret []byte
	Producer  *mykafka.Producer
}

func CreateCookie(name, value, path string, expTime time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password required")
	}

	ctx := c.Request().Context()
	if _, err := h.Users.FindByUsername(ctx, req.Username); err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "username already exists")
	} else if !repo.IsRecordNotFound(err) {
		return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
	}

	// Role is never taken from the request body; admins are provisioned out
	// of band.
	user := models.User{
		Username:     req.Username,
		PasswordHash: pwHash,
		Role:         "user",
	}
	if err := h.Users.CreateUser(ctx, &user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
	}

	h.publish(c, map[string]interface{}{
		"type":     "user_registered",
		"userID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusCreated, echo.Map{"message": "user registered"})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password required")
	}

	user, err := h.Users.FindByUsername(c.Request().Context(), req.Username)
	if err != nil || !hash.CheckPassword(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	signed, err := token.Sign(user.ID, user.Username, user.Role, h.JWTSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	c.SetCookie(CreateCookie(authmw.CookieName, signed, "/", time.Now().Add(token.TTL)))

	h.publish(c, map[string]interface{}{
		"type":     "user_logged_in",
		"userID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"token":    signed,
		"username": user.Username,
		"role":     user.Role,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	expired := time.Now().Add(-1 * time.Hour)
	c.SetCookie(CreateCookie(authmw.CookieName, "", "/", expired))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicUserEvents, fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
