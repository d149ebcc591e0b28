package db

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sanziv9999/GharkoSwad/configs"
	"github.com/sanziv9999/GharkoSwad/internal/models"
)

var DB *gorm.DB

func Init() {
	cfg := config.LoadDatabaseConfig()

	var err error

	DB, err = Open(postgres.Open(cfg.DSN()))

	if err != nil {
		slog.Error("failed to open database", "host", cfg.Host, "db", cfg.Name, "error", err)
		os.Exit(1)
	}

	slog.Info("database connected and migrated", "host", cfg.Host, "db", cfg.Name)
}

// Open connects through the given dialector and migrates the schema.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(conn); err != nil {
		return nil, err
	}

	return conn, nil
}

// Migrate creates the order tables. users and food_items belong to the
// identity and catalog systems; they are migrated here so a fresh database
// can serve lookups.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.User{},
		&models.FoodItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
	)
}

func SetTestDB(testDB *gorm.DB) {
	DB = testDB
}

// IsUniqueViolation reports a unique-constraint failure from postgres or sqlite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
