package database_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/darasahq/darasa/internal/database"
	"github.com/darasahq/darasa/internal/database/testutil"
	"github.com/darasahq/darasa/internal/models"
)

func TestIsUniqueViolationSQLite(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	first := models.User{TenantID: "t-1", Username: "jdoe", Email: "jdoe@example.com"}
	require.NoError(t, db.Create(&first).Error)

	dup := models.User{TenantID: "t-1", Username: "jdoe", Email: "jdoe2@example.com"}
	err := db.Create(&dup).Error
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
}

func TestIsUniqueViolationOtherErrors(t *testing.T) {
	assert.False(t, database.IsUniqueViolation(nil))
	assert.False(t, database.IsUniqueViolation(errors.New("connection reset")))
	assert.False(t, database.IsUniqueViolation(gorm.ErrRecordNotFound))
	assert.True(t, database.IsUniqueViolation(gorm.ErrDuplicatedKey))
}
