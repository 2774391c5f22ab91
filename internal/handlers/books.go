package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/avolkov/booklend/internal/lending"
	authmw "github.com/avolkov/booklend/internal/middleware/auth"
	"github.com/avolkov/booklend/internal/models"
	"github.com/avolkov/booklend/internal/mykafka"
	"github.com/avolkov/booklend/internal/repo"
	"github.com/avolkov/booklend/internal/search"
)

type BookHandler struct {
	Books    *repo.BookRepo
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	Index    string
}

// BookView annotates a record with the requester-relative flags the client
// renders. The stored record never carries "issued", it is derived here.
type BookView struct {
	models.Book
	Issued         bool `json:"issued"`
	IsAvailable    bool `json:"isAvailable"`
	IsBorrowedByMe bool `json:"isBorrowedByMe"`
	Overdue        bool `json:"overdue"`
	CanReturn      bool `json:"canReturn"`
}

func newBookView(book models.Book, username string, now time.Time) BookView {
	borrowedByMe := book.IssuedBy != nil && *book.IssuedBy == username &&
		book.ReturnStatus == lending.StatusNotReturned
	return BookView{
		Book:           book,
		Issued:         book.AvailableCopies < book.TotalCopies,
		IsAvailable:    book.AvailableCopies > 0,
		IsBorrowedByMe: borrowedByMe,
		Overdue:        lending.Overdue(book.DueDate, now),
		CanReturn:      borrowedByMe,
	}
}

func bookViews(books []models.Book, username string, now time.Time) []BookView {
	views := make([]BookView, len(books))
	for i, b := range books {
		views[i] = newBookView(b, username, now)
	}
	return views
}

func (h *BookHandler) ListBooks(c echo.Context) error {
	books, err := h.Books.ListBooks(c.Request().Context(), c.QueryParam("sortBy"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch books")
	}
	return c.JSON(http.StatusOK, bookViews(books, authmw.Username(c), time.Now()))
}

// ListIssuedBooks is the admin overview of every title with copies out.
func (h *BookHandler) ListIssuedBooks(c echo.Context) error {
	books, err := h.Books.ListIssued(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch issued books")
	}
	return c.JSON(http.StatusOK, bookViews(books, authmw.Username(c), time.Now()))
}

// MyIssuedBooks lists the requester's active loans.
func (h *BookHandler) MyIssuedBooks(c echo.Context) error {
	books, err := h.Books.ListIssuedBy(c.Request().Context(), authmw.Username(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch issued books")
	}
	return c.JSON(http.StatusOK, bookViews(books, authmw.Username(c), time.Now()))
}

func (h *BookHandler) IssueBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	username := authmw.Username(c)
	book, err := h.Books.Issue(c.Request().Context(), id, username, time.Now())
	if err != nil {
		return lendingError(err)
	}

	h.publish(c, mykafka.TopicLoanEvents, map[string]interface{}{
		"type":    "book_issued",
		"bookID":  book.ID,
		"title":   book.Title,
		"dueDate": book.DueDate,
		"userID":  username,
	})
	h.index(c, book)

	return c.JSON(http.StatusOK, newBookView(*book, username, time.Now()))
}

func (h *BookHandler) ReturnBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	username := authmw.Username(c)
	book, err := h.Books.Return(c.Request().Context(), id, username, authmw.Role(c))
	if err != nil {
		return lendingError(err)
	}

	h.publish(c, mykafka.TopicLoanEvents, map[string]interface{}{
		"type":   "book_returned",
		"bookID": book.ID,
		"title":  book.Title,
		"userID": username,
	})
	h.index(c, book)

	return c.JSON(http.StatusOK, newBookView(*book, username, time.Now()))
}

type createBookRequest struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author" validate:"required"`
	Category    string `json:"category"`
	Year        int    `json:"year"`
	Description string `json:"description"`
	TotalCopies int    `json:"totalCopies"`
}

func (h *BookHandler) CreateBook(c echo.Context) error {
	var req createBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "title and author required")
	}
	if req.TotalCopies < 1 {
		req.TotalCopies = 1
	}

	book := models.Book{
		Title:           req.Title,
		Author:          req.Author,
		Category:        req.Category,
		Year:            req.Year,
		Description:     req.Description,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
		ReturnStatus:    lending.StatusNotReturned,
	}
	if err := h.Books.CreateBook(c.Request().Context(), &book); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to add book")
	}

	h.publish(c, mykafka.TopicBookEvents, map[string]interface{}{
		"type":   "book_created",
		"bookID": book.ID,
		"title":  book.Title,
	})
	h.index(c, &book)

	return c.JSON(http.StatusCreated, newBookView(book, authmw.Username(c), time.Now()))
}

func (h *BookHandler) UpdateBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var patch repo.BookPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	book, err := h.Books.UpdateBook(c.Request().Context(), id, patch)
	if err != nil {
		return lendingError(err)
	}

	h.publish(c, mykafka.TopicBookEvents, map[string]interface{}{
		"type":   "book_updated",
		"bookID": book.ID,
		"title":  book.Title,
	})
	h.index(c, book)

	return c.JSON(http.StatusOK, newBookView(*book, authmw.Username(c), time.Now()))
}

func (h *BookHandler) DeleteBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.Books.DeleteBook(c.Request().Context(), id); err != nil {
		if repo.IsRecordNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "book not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "delete failed")
	}

	h.publish(c, mykafka.TopicBookEvents, map[string]interface{}{
		"type":   "book_deleted",
		"bookID": id,
	})
	h.deindex(c, id)

	return c.JSON(http.StatusOK, echo.Map{"message": "book deleted"})
}

// lendingError translates repo and engine failures into the API error
// taxonomy.
func lendingError(err error) error {
	var resizeErr *lending.BelowIssuedCountError
	switch {
	case repo.IsRecordNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, "book not found")
	case errors.Is(err, lending.ErrNoCopies):
		return echo.NewHTTPError(http.StatusBadRequest, lending.ErrNoCopies.Error())
	case errors.Is(err, lending.ErrLoanLimit):
		return echo.NewHTTPError(http.StatusBadRequest, lending.ErrLoanLimit.Error())
	case errors.Is(err, lending.ErrNotBorrower), errors.Is(err, lending.ErrAlreadyReturned):
		return echo.NewHTTPError(http.StatusForbidden, "unauthorized return attempt")
	case errors.As(err, &resizeErr):
		return echo.NewHTTPError(http.StatusBadRequest, resizeErr.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func (h *BookHandler) publish(c echo.Context, topic string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, fmt.Sprint(event["bookID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *BookHandler) index(c echo.Context, book *models.Book) {
	if h.ES == nil {
		return
	}
	if err := search.IndexBook(c.Request().Context(), h.ES, h.Index, book); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *BookHandler) deindex(c echo.Context, id int) {
	if h.ES == nil {
		return
	}
	if err := search.DeleteBook(c.Request().Context(), h.ES, h.Index, id); err != nil {
		c.Logger().Errorf("ES delete error: %v", err)
	}
}
