package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avolkov/booklend/internal/handlers"
	authmw "github.com/avolkov/booklend/internal/middleware/auth"
)

type Deps struct {
	AuthHandler   *handlers.AuthHandler
	BookHandler   *handlers.BookHandler
	SearchHandler *handlers.SearchHandler
	Auth          *authmw.Middleware
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = errorHandler

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.POST("/register", d.AuthHandler.Register)
	e.POST("/login", d.AuthHandler.Login)
	e.POST("/logout", d.AuthHandler.Logout)

	e.GET("/books", d.BookHandler.ListBooks, d.Auth.RequireLogin)
	e.GET("/issued", d.BookHandler.MyIssuedBooks, d.Auth.RequireLogin)
	e.PUT("/books/:id/issue", d.BookHandler.IssueBook, d.Auth.RequireLogin)
	e.PUT("/books/:id/return", d.BookHandler.ReturnBook, d.Auth.RequireLogin)
	if d.SearchHandler != nil {
		e.GET("/books/search", d.SearchHandler.Search, d.Auth.RequireLogin)
	}

	e.GET("/books/issued", d.BookHandler.ListIssuedBooks, d.Auth.AdminOnly)
	e.POST("/books", d.BookHandler.CreateBook, d.Auth.AdminOnly)
	e.PUT("/books/:id", d.BookHandler.UpdateBook, d.Auth.AdminOnly)
	e.DELETE("/books/:id", d.BookHandler.DeleteBook, d.Auth.AdminOnly)
}

// errorHandler renders every failure as {"error": message} with the mapped
// status, clients surface the message verbatim.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		}
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, echo.Map{"error": message})
	}
	if writeErr != nil {
		c.Logger().Error(writeErr)
	}
}
