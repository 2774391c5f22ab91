package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/avolkov/booklend/internal/config"
	"github.com/avolkov/booklend/internal/es"
	"github.com/avolkov/booklend/internal/handlers"
	"github.com/avolkov/booklend/internal/logging"
	authmw "github.com/avolkov/booklend/internal/middleware/auth"
	loggingmw "github.com/avolkov/booklend/internal/middleware/logging"
	"github.com/avolkov/booklend/internal/mykafka"
	"github.com/avolkov/booklend/internal/repo"
	httpserver "github.com/avolkov/booklend/internal/transport/http"
	"github.com/avolkov/booklend/internal/validation"
)

const booksIndex = "books"

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod, err = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
		if err != nil {
			log.Fatal(err)
		}
	}

	var searchHandler *handlers.SearchHandler
	bookHandler := &handlers.BookHandler{
		Books:    &repo.BookRepo{DB: db},
		Producer: prod,
		Index:    booksIndex,
	}
	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			log.Fatal(err)
		}
		bookHandler.ES = esClient
		searchHandler = &handlers.SearchHandler{ES: esClient, Index: booksIndex}
	}

	e := echo.New()
	e.Validator = validation.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		AuthHandler:   &handlers.AuthHandler{Users: &repo.UserRepo{DB: db}, JWTSecret: jwtSecret, Producer: prod},
		BookHandler:   bookHandler,
		SearchHandler: searchHandler,
		Auth:          &authmw.Middleware{JWTSecret: jwtSecret},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
