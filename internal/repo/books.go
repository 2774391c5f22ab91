package repo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/avolkov/booklend/internal/lending"
	"github.com/avolkov/booklend/internal/models"
)

type BookRepo struct {
	DB *gorm.DB
}

// BookPatch carries the admin edit-book fields; nil means "leave unchanged".
type BookPatch struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Category    *string `json:"category"`
	Year        *int    `json:"year"`
	Description *string `json:"description"`
	TotalCopies *int    `json:"totalCopies"`
}

func (r *BookRepo) GetBook(ctx context.Context, id int) (*models.Book, error) {
	book := models.Book{}
	if err := r.DB.WithContext(ctx).First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *BookRepo) ListBooks(ctx context.Context, sortBy string) ([]models.Book, error) {
	q := r.DB.WithContext(ctx).Model(&models.Book{})
	switch sortBy {
	case "title":
		q = q.Order("title ASC")
	case "dueDate":
		// Books without an active loan sort after everything due.
		q = q.Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date ASC")
	default:
		q = q.Order("id ASC")
	}

	var books []models.Book
	if err := q.Find(&books).Error; err != nil {
		return nil, errors.Wrap(err, "list books")
	}
	return books, nil
}

// ListIssued returns every title with at least one copy out, soonest due
// first.
func (r *BookRepo) ListIssued(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	err := r.DB.WithContext(ctx).
		Where("available_copies < total_copies AND return_status = ?", lending.StatusNotReturned).
		Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date ASC").
		Find(&books).Error
	if err != nil {
		return nil, errors.Wrap(err, "list issued books")
	}
	return books, nil
}

// ListIssuedBy returns the requester's active loans.
func (r *BookRepo) ListIssuedBy(ctx context.Context, username string) ([]models.Book, error) {
	var books []models.Book
	err := r.DB.WithContext(ctx).
		Where("issued_by = ? AND return_status = ?", username, lending.StatusNotReturned).
		Order("id ASC").
		Find(&books).Error
	if err != nil {
		return nil, errors.Wrap(err, "list issued by user")
	}
	return books, nil
}

func (r *BookRepo) CountActiveLoans(ctx context.Context, username string) (int, error) {
	return countActiveLoans(r.DB.WithContext(ctx), username)
}

func countActiveLoans(tx *gorm.DB, username string) (int, error) {
	var n int64
	err := tx.Model(&models.Book{}).
		Where("issued_by = ? AND return_status = ?", username, lending.StatusNotReturned).
		Count(&n).Error
	if err != nil {
		return 0, errors.Wrap(err, "count active loans")
	}
	return int(n), nil
}

func (r *BookRepo) CountBooks(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Book{}).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "count books")
	}
	return n, nil
}

func (r *BookRepo) CreateBook(ctx context.Context, book *models.Book) error {
	if err := r.DB.WithContext(ctx).Create(book).Error; err != nil {
		return errors.Wrap(err, "create book")
	}
	return nil
}

// UpdateBook applies an admin edit. A totalCopies change is reconciled
// against copies currently on loan so the availability invariant survives
// pool resizes.
func (r *BookRepo) UpdateBook(ctx context.Context, id int, patch BookPatch) (*models.Book, error) {
	var book models.Book
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&book, id).Error; err != nil {
			return err
		}

		if patch.Title != nil {
			book.Title = *patch.Title
		}
		if patch.Author != nil {
			book.Author = *patch.Author
		}
		if patch.Category != nil {
			book.Category = *patch.Category
		}
		if patch.Year != nil {
			book.Year = *patch.Year
		}
		if patch.Description != nil {
			book.Description = *patch.Description
		}
		if patch.TotalCopies != nil {
			available, err := lending.AvailableAfterResize(&book, *patch.TotalCopies)
			if err != nil {
				return err
			}
			book.TotalCopies = *patch.TotalCopies
			book.AvailableCopies = available
		}

		return errors.Wrap(tx.Save(&book).Error, "save book")
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *BookRepo) DeleteBook(ctx context.Context, id int) error {
	res := r.DB.WithContext(ctx).Delete(&models.Book{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete book")
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Issue applies the lending decision atomically. The copy counter mutation is
// a conditional update guarded on available_copies, so two concurrent issues
// of the last copy cannot both succeed; the loser gets ErrNoCopies.
func (r *BookRepo) Issue(ctx context.Context, id int, borrower string, now time.Time) (*models.Book, error) {
	var book models.Book
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&book, id).Error; err != nil {
			return err
		}

		active, err := countActiveLoans(tx, borrower)
		if err != nil {
			return err
		}

		if err := lending.Issue(&book, borrower, now, active); err != nil {
			return err
		}

		res := tx.Model(&models.Book{}).
			Where("id = ? AND available_copies > 0", id).
			Updates(map[string]interface{}{
				"available_copies": gorm.Expr("available_copies - 1"),
				"due_date":         book.DueDate,
				"return_status":    book.ReturnStatus,
				"issued_by":        book.IssuedBy,
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "issue book")
		}
		if res.RowsAffected == 0 {
			return lending.ErrNoCopies
		}

		return tx.First(&book, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// Return applies the return decision atomically, mirroring Issue: the
// increment is guarded so it can never push available_copies past
// total_copies even under concurrent returns.
func (r *BookRepo) Return(ctx context.Context, id int, requester, role string) (*models.Book, error) {
	var book models.Book
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&book, id).Error; err != nil {
			return err
		}

		if err := lending.Return(&book, requester, role); err != nil {
			return err
		}

		res := tx.Model(&models.Book{}).
			Where("id = ? AND available_copies < total_copies AND return_status = ?", id, lending.StatusNotReturned).
			Updates(map[string]interface{}{
				"available_copies": gorm.Expr("available_copies + 1"),
				"due_date":         nil,
				"return_status":    lending.StatusReturned,
				"issued_by":        nil,
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "return book")
		}
		if res.RowsAffected == 0 {
			return lending.ErrAlreadyReturned
		}

		return tx.First(&book, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}
