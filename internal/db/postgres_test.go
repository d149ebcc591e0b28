package db_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sanziv9999/GharkoSwad/internal/db"
	"github.com/sanziv9999/GharkoSwad/internal/models"
)

func TestOpenMigratesSchema(t *testing.T) {
	conn, err := db.Open(sqlite.Open("file:migrate_test?mode=memory&cache=shared"))
	require.NoError(t, err)

	for _, table := range []any{&models.User{}, &models.FoodItem{}, &models.Order{}, &models.OrderItem{}, &models.Payment{}} {
		assert.True(t, conn.Migrator().HasTable(table))
	}
	assert.True(t, conn.Migrator().HasColumn(&models.Order{}, "version"))
	assert.True(t, conn.Migrator().HasIndex(&models.Payment{}, "idx_payments_transaction_id"))
}

func TestIsUniqueViolation(t *testing.T) {
	conn, err := db.Open(sqlite.Open("file:unique_test?mode=memory&cache=shared"))
	require.NoError(t, err)

	ref := "txn-1"
	require.NoError(t, conn.Create(&models.Payment{OrderID: 1, AmountMinor: 100, Method: models.PaymentMethodEsewa, Status: models.PaymentStatusPending, TransactionID: &ref}).Error)
	err = conn.Create(&models.Payment{OrderID: 2, AmountMinor: 100, Method: models.PaymentMethodEsewa, Status: models.PaymentStatusPending, TransactionID: &ref}).Error
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err))

	assert.True(t, db.IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, db.IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.False(t, db.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, db.IsUniqueViolation(errors.New("timeout")))
	assert.False(t, db.IsUniqueViolation(nil))
}
