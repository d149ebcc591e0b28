// Package testsupport opens throwaway sqlite databases and seeds the
// identity and catalog tables for service and handler tests.
package testsupport

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sanziv9999/GharkoSwad/internal/db"
	"github.com/sanziv9999/GharkoSwad/internal/models"
)

// NewDB returns a migrated in-memory database private to the calling test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := db.Open(sqlite.Open(dsn))
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// one connection keeps the shared-cache database alive and avoids
	// table locks between a transaction and a concurrent read.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return conn
}

func SeedUser(t *testing.T, conn *gorm.DB, name string, role models.Role) models.User {
	t.Helper()

	user := models.User{
		Username: name,
		Email:    name + "@example.com",
		Phone:    "+9779800000000",
		Role:     role,
	}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

func SeedFood(t *testing.T, conn *gorm.DB, name string, price float64, chefID uint) models.FoodItem {
	t.Helper()

	food := models.FoodItem{Name: name, Price: price, Available: true, UserID: chefID}
	require.NoError(t, conn.Create(&food).Error)
	return food
}
