package main

import (
	"context"
	"log"

	"github.com/avolkov/booklend/internal/config"
	"github.com/avolkov/booklend/internal/hash"
	"github.com/avolkov/booklend/internal/lending"
	"github.com/avolkov/booklend/internal/models"
	"github.com/avolkov/booklend/internal/repo"
)

// Seeds the sample catalog and the bootstrap admin account. Both steps are
// skipped when the corresponding table already has rows, so the command is
// safe to run repeatedly.
func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	ctx := context.Background()
	books := &repo.BookRepo{DB: db}
	users := &repo.UserRepo{DB: db}

	if n, err := books.CountBooks(ctx); err != nil {
		log.Fatal(err)
	} else if n == 0 {
		for _, b := range sampleBooks() {
			b := b
			if err := books.CreateBook(ctx, &b); err != nil {
				log.Fatalf("seed book %q: %v", b.Title, err)
			}
		}
		log.Println("sample books loaded")
	}

	if n, err := users.CountUsers(ctx); err != nil {
		log.Fatal(err)
	} else if n == 0 {
		pwHash, err := hash.HashPassword(configuration.ADMIN_PASSWORD)
		if err != nil {
			log.Fatal(err)
		}
		admin := models.User{
			Username:     configuration.ADMIN_USERNAME,
			PasswordHash: pwHash,
			Role:         lending.RoleAdmin,
		}
		if err := users.CreateUser(ctx, &admin); err != nil {
			log.Fatalf("seed admin: %v", err)
		}
		log.Printf("admin user %q created", admin.Username)
	}
}

func sampleBooks() []models.Book {
	mk := func(title, author, category string, year, copies int, description string) models.Book {
		return models.Book{
			Title:           title,
			Author:          author,
			Category:        category,
			Year:            year,
			Description:     description,
			TotalCopies:     copies,
			AvailableCopies: copies,
			ReturnStatus:    lending.StatusNotReturned,
		}
	}

	return []models.Book{
		mk("The Girl in Room 105", "Chetan Bhagat", "Thriller", 2018, 5, "A suspense thriller involving a mysterious murder."),
		mk("The Mahabharata Secret", "Christopher C. Doyle", "Thriller", 2013, 4, "A gripping historical thriller based on ancient Indian secrets."),
		mk("The Immortals of Meluha", "Amish Tripathi", "Fantasy", 2010, 6, "A mythological fantasy reimagining Lord Shiva's life."),
		mk("The Secret of the Nagas", "Amish Tripathi", "Fantasy", 2011, 6, "Sequel to Immortals of Meluha, diving deeper into Indian mythology."),
		mk("Grandma's Bag of Stories", "Sudha Murty", "Kids", 2012, 7, "A delightful collection of moral stories for kids."),
		mk("The Magic Drum and Other Favourite Stories", "Sudha Murty", "Kids", 2008, 5, "Traditional folk tales retold for children."),
		mk("2 States", "Chetan Bhagat", "Romance", 2009, 8, "A love story about a couple from different Indian states."),
		mk("I Too Had a Love Story", "Ravinder Singh", "Romance", 2008, 6, "A heart-touching romantic tale based on a true story."),
		mk("Serious Men", "Manu Joseph", "Comedy", 2010, 5, "A satirical novel exploring ambition and caste in India."),
		mk("Don't Tell the Governor", "Ravi Subramanian", "Comedy", 2018, 7, "A humorous political fiction novel."),
	}
}
