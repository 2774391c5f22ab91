package repo

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avolkov/booklend/internal/lending"
	"github.com/avolkov/booklend/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	if err := db.AutoMigrate(&models.Book{}, &models.User{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func createBook(t *testing.T, r *BookRepo, title string, copies int) *models.Book {
	t.Helper()

	book := models.Book{
		Title:           title,
		Author:          "Test Author",
		TotalCopies:     copies,
		AvailableCopies: copies,
		ReturnStatus:    lending.StatusNotReturned,
	}
	require.NoError(t, r.CreateBook(context.Background(), &book))
	return &book
}

func TestIssueReturn_RoundTrip(t *testing.T) {
	r := &BookRepo{DB: initTestDB(t)}
	ctx := context.Background()
	book := createBook(t, r, "The Girl in Room 105", 1)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	issued, err := r.Issue(ctx, book.ID, "alice", now)
	require.NoError(t, err)

	assert.Equal(t, 0, issued.AvailableCopies)
	assert.True(t, issued.Issued())
	require.NotNil(t, issued.IssuedBy)
	assert.Equal(t, "alice", *issued.IssuedBy)
	require.NotNil(t, issued.DueDate)
	assert.Equal(t, "2024-03-08", *issued.DueDate)

	returned, err := r.Return(ctx, book.ID, "alice", lending.RoleUser)
	require.NoError(t, err)

	assert.Equal(t, 1, returned.AvailableCopies)
	assert.False(t, returned.Issued())
	assert.Nil(t, returned.IssuedBy)
	assert.Nil(t, returned.DueDate)
	assert.Equal(t, lending.StatusReturned, returned.ReturnStatus)
}

func TestIssue_ExhaustedPool(t *testing.T) {
	r := &BookRepo{DB: initTestDB(t)}
	ctx := context.Background()
	book := createBook(t, r, "2 States", 1)

	_, err := r.Issue(ctx, book.ID, "alice", time.Now())
	require.NoError(t, err)

	_, err = r.Issue(ctx, book.ID, "bob", time.Now())
	require.ErrorIs(t, err, lending.ErrNoCopies)

	stored, err := r.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.AvailableCopies, "rejected issue must not touch the counter")
}

func TestIssue_NotFound(t *testing.T) {
	r := &BookRepo{DB: initTestDB(t)}

	_, err := r.Issue(context.Background(), 9999, "alice", time.Now())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestIssue_LoanLimitAcrossBooks(t *testing.T) {
	r := &BookRepo{DB: initTestDB(t)}
	ctx := context.Background()

	for i := 0; i < lending.MaxActiveLoans+1; i++ {
		createBook(t, r, "Serious Men", 3)
	}

	books, err := r.ListBooks(ctx, "")
	require.NoError(t, err)
	require.Len(t, books, lending.MaxActiveLoans+1)

	for i := 0; i < lending.MaxActiveLoans; i++ {
		_, err := r.Issue(ctx, books[i].ID, "alice", time.Now())
		require.NoError(t, err)
	}

	_, err = r.Issue(ctx, books[lending.MaxActiveLoans].ID, "alice", time.Now())
	require.ErrorIs(t, err, lending.ErrLoanLimit)

	// A returned loan frees a slot.
	_, err = r.Return(ctx, books[0].ID, "alice", lending.RoleUser)
	require.NoError(t, err)
	_, err = r.Issue(ctx, books[lending.MaxActiveLoans].ID, "alice", time.Now())
	require.NoError(t, err)
}

func TestReturn_Authorization(t *testing.T) {
	r := &BookRepo{DB: initTestDB(t)}
	ctx := context.Background()
	book := createBook(t, r, "The Mahabharata Secret", 2)

	_, err := r.Issue(ctx, book.ID, "alice", time.Now())
	require.NoError(t, err)

	_, err = r.Return(ctx, book.ID, "bob", lending.RoleUser)
	require.ErrorIs(t, err, lending.ErrNotBorrower)

	_, err = r.Return(ctx, book.ID, "librarian", lending.RoleAdmin)
	require.NoError(t, err)

	_, err = r.Return(ctx, book.ID, "alice", lending.RoleUser)
	require.ErrorIs(t, err, lending.ErrAlreadyReturned)
}

func TestUpdateBook_Resize(t *testing.T) {
	r := &BookRepo{DB: initTestDB(t)}
	ctx := context.Background()
	book := createBook(t, r, "Grandma's Bag of Stories", 5)

	for _, user := range []string{"alice", "bob", "carol"} {
		_, err := r.Issue(ctx, book.ID, user, time.Now())
		require.NoError(t, err)
	}

	// 3 copies out: shrinking below that must fail without touching the row.
	two := 2
	_, err := r.UpdateBook(ctx, book.ID, BookPatch{TotalCopies: &two})
	var resizeErr *lending.BelowIssuedCountError
	require.ErrorAs(t, err, &resizeErr)

	stored, err := r.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.TotalCopies)
	assert.Equal(t, 2, stored.AvailableCopies)

	ten := 10
	updated, err := r.UpdateBook(ctx, book.ID, BookPatch{TotalCopies: &ten})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.TotalCopies)
	assert.Equal(t, 7, updated.AvailableCopies)
}

func TestUpdateBook_PartialPatch(t *testing.T) {
	r := &BookRepo{DB: initTestDB(t)}
	ctx := context.Background()
	book := createBook(t, r, "Old Title", 2)

	title := "New Title"
	updated, err := r.UpdateBook(ctx, book.ID, BookPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "New Title", updated.Title)
	assert.Equal(t, "Test Author", updated.Author)
	assert.Equal(t, 2, updated.TotalCopies)
}

func TestListBooks_Sorting(t *testing.T) {
	r := &BookRepo{DB: initTestDB(t)}
	ctx := context.Background()

	b := createBook(t, r, "Bravo", 1)
	createBook(t, r, "Alpha", 1)
	createBook(t, r, "Charlie", 1)

	byTitle, err := r.ListBooks(ctx, "title")
	require.NoError(t, err)
	require.Len(t, byTitle, 3)
	assert.Equal(t, "Alpha", byTitle[0].Title)
	assert.Equal(t, "Charlie", byTitle[2].Title)

	_, err = r.Issue(ctx, b.ID, "alice", time.Now())
	require.NoError(t, err)

	byDue, err := r.ListBooks(ctx, "dueDate")
	require.NoError(t, err)
	require.Len(t, byDue, 3)
	assert.Equal(t, "Bravo", byDue[0].Title, "books with a due date sort before unloaned ones")
	assert.Nil(t, byDue[1].DueDate)
	assert.Nil(t, byDue[2].DueDate)
}

func TestListIssued(t *testing.T) {
	r := &BookRepo{DB: initTestDB(t)}
	ctx := context.Background()

	a := createBook(t, r, "Loaned", 2)
	createBook(t, r, "Idle", 2)

	_, err := r.Issue(ctx, a.ID, "alice", time.Now())
	require.NoError(t, err)

	issued, err := r.ListIssued(ctx)
	require.NoError(t, err)
	require.Len(t, issued, 1)
	assert.Equal(t, "Loaned", issued[0].Title)

	mine, err := r.ListIssuedBy(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	none, err := r.ListIssuedBy(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteBook(t *testing.T) {
	r := &BookRepo{DB: initTestDB(t)}
	ctx := context.Background()
	book := createBook(t, r, "Doomed", 1)

	require.NoError(t, r.DeleteBook(ctx, book.ID))
	require.ErrorIs(t, r.DeleteBook(ctx, book.ID), gorm.ErrRecordNotFound)
}
