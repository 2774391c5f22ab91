package lending

import (
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/booklend/internal/models"
)

const (
	// MaxActiveLoans caps how many not-yet-returned books a single user may
	// hold at once.
	MaxActiveLoans = 3

	// LoanDays is the lending period; due dates carry no time-of-day.
	LoanDays   = 7
	DateLayout = "2006-01-02"

	StatusReturned    = "Returned"
	StatusNotReturned = "Not Returned"

	RoleAdmin = "admin"
	RoleUser  = "user"
)

var (
	ErrNoCopies        = errors.New("no copies available to issue")
	ErrLoanLimit       = fmt.Errorf("issue limit reached (%d books)", MaxActiveLoans)
	ErrNotBorrower     = errors.New("unauthorized return attempt")
	ErrAlreadyReturned = errors.New("book already returned")
)

// BelowIssuedCountError rejects shrinking a copy pool below the number of
// copies currently out on loan.
type BelowIssuedCountError struct {
	NewTotal int
	Issued   int
}

func (e *BelowIssuedCountError) Error() string {
	return fmt.Sprintf("total copies (%d) cannot be less than issued copies (%d)", e.NewTotal, e.Issued)
}

// Issue decides whether borrower may take a copy of book and, if so, applies
// the resulting mutation in place. activeLoans is the borrower's current
// count of not-returned loans; the caller computes it and is responsible for
// applying the whole read-decide-write atomically.
func Issue(book *models.Book, borrower string, now time.Time, activeLoans int) error {
	if book.AvailableCopies <= 0 {
		return ErrNoCopies
	}
	if activeLoans >= MaxActiveLoans {
		return ErrLoanLimit
	}

	book.AvailableCopies--
	due := now.AddDate(0, 0, LoanDays).Format(DateLayout)
	book.DueDate = &due
	book.ReturnStatus = StatusNotReturned
	book.IssuedBy = &borrower
	return nil
}

// Return decides whether requester may return book and, if so, applies the
// resulting mutation in place. Admins may return on behalf of any borrower.
func Return(book *models.Book, requester, role string) error {
	if book.ReturnStatus == StatusReturned {
		return ErrAlreadyReturned
	}
	if role != RoleAdmin && (book.IssuedBy == nil || *book.IssuedBy != requester) {
		return ErrNotBorrower
	}
	if book.AvailableCopies >= book.TotalCopies {
		// Counter drift would mean a bug in the storage layer, not user error.
		return fmt.Errorf("available copies (%d) already at total (%d)", book.AvailableCopies, book.TotalCopies)
	}

	book.AvailableCopies++
	book.DueDate = nil
	book.ReturnStatus = StatusReturned
	book.IssuedBy = nil
	return nil
}

// Overdue reports whether a due date lies strictly before now. A nil or
// malformed due date is never overdue. Display annotation only, it blocks
// nothing.
func Overdue(dueDate *string, now time.Time) bool {
	if dueDate == nil {
		return false
	}
	due, err := time.Parse(DateLayout, *dueDate)
	if err != nil {
		return false
	}
	return due.Before(now)
}

// AvailableAfterResize computes the available count after changing a book's
// pool to newTotal, keeping copies currently on loan accounted for.
func AvailableAfterResize(book *models.Book, newTotal int) (int, error) {
	issued := book.TotalCopies - book.AvailableCopies
	if newTotal < issued {
		return 0, &BelowIssuedCountError{NewTotal: newTotal, Issued: issued}
	}
	return newTotal - issued, nil
}
