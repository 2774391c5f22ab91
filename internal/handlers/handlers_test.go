package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avolkov/booklend/internal/hash"
	"github.com/avolkov/booklend/internal/models"
	"github.com/avolkov/booklend/internal/repo"
	"github.com/avolkov/booklend/internal/validation"
)

type testEnv struct {
	T  *testing.T
	E  *echo.Echo
	DB *gorm.DB
	A  *AuthHandler
	B  *BookHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.Book{}, &models.User{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	e := echo.New()
	e.Validator = validation.New()

	jwtSecret := []byte("test-jwt-secret")

	return &testEnv{
		T:  t,
		E:  e,
		DB: db,
		A:  &AuthHandler{Users: &repo.UserRepo{DB: db}, JWTSecret: jwtSecret},
		B:  &BookHandler{Books: &repo.BookRepo{DB: db}},
	}
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

// asUser stamps the context the way the auth middleware would after
// verifying a token.
func asUser(c echo.Context, username, role string) {
	c.Set("username", username)
	c.Set("role", role)
}

func (env *testEnv) createUser(username, password, role string) *models.User {
	env.T.Helper()

	pwHash, err := hash.HashPassword(password)
	require.NoError(env.T, err)

	user := models.User{Username: username, PasswordHash: pwHash, Role: role}
	require.NoError(env.T, env.DB.Create(&user).Error)
	return &user
}

func requireHTTPError(t *testing.T, err error, code int) {
	t.Helper()

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
}
