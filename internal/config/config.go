package config

import (
	"fmt"
	"log"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/avolkov/booklend/internal/models"
)

type Config struct {
	PORT           string
	LOG_LEVEL      string
	DB_DRIVER      string
	DB_HOST        string
	DB_PORT        string
	DB_USER        string
	DB_PASSWORD    string
	DB_NAME        string
	DB_PATH        string
	ES_URL         string
	ES_USER        string
	ES_PASSWORD    string
	JWT_SECRET     string
	KAFKA_ADDRESS  string
	ADMIN_USERNAME string
	ADMIN_PASSWORD string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		PORT:           getenvDefault("PORT", "8080"),
		LOG_LEVEL:      os.Getenv("LOG_LEVEL"),
		DB_DRIVER:      getenvDefault("DB_DRIVER", "postgres"),
		DB_HOST:        os.Getenv("DB_HOST"),
		DB_PORT:        os.Getenv("DB_PORT"),
		DB_USER:        os.Getenv("DB_USER"),
		DB_PASSWORD:    os.Getenv("DB_PASSWORD"),
		DB_NAME:        os.Getenv("DB_NAME"),
		DB_PATH:        getenvDefault("DB_PATH", "booklend.db"),
		ES_URL:         os.Getenv("ES_URL"),
		ES_USER:        os.Getenv("ES_USER"),
		ES_PASSWORD:    os.Getenv("ES_PASSWORD"),
		JWT_SECRET:     os.Getenv("JWT_SECRET"),
		KAFKA_ADDRESS:  os.Getenv("KAFKA_ADDRESS"),
		ADMIN_USERNAME: getenvDefault("ADMIN_USERNAME", "admin"),
		ADMIN_PASSWORD: getenvDefault("ADMIN_PASSWORD", "admin123"),
	}

	if config.JWT_SECRET == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	return config, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func InitDB(configuration *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch configuration.DB_DRIVER {
	case "sqlite":
		dialector = sqlite.Open(configuration.DB_PATH)
	default:
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			configuration.DB_USER, configuration.DB_PASSWORD,
			configuration.DB_HOST, configuration.DB_PORT, configuration.DB_NAME,
		)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.Book{}, &models.User{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}
