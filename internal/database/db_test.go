package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/internal/models"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestOpenSQLiteInMemory(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrateAndSeed(db))

	var tenant models.Tenant
	require.NoError(t, db.Where("slug = ?", "default").First(&tenant).Error)
	assert.Equal(t, "Default School", tenant.Name)

	var pref models.NotificationPreference
	require.NoError(t, db.Where("tenant_id = ? AND user_id = ''", tenant.ID).First(&pref).Error)
	assert.Equal(t, "billing.invoice", pref.NotificationType)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	_ = sqlDB.Close()
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "darasa", Name: "darasa", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "host=localhost port=5432 user=darasa dbname=darasa password=s3cret sslmode=disable", dsn)

	_, err = buildPostgresDSN(Config{})
	assert.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "darasa", Name: "darasa"})
	require.NoError(t, err)
	assert.Equal(t, "darasa@tcp(127.0.0.1:3306)/darasa?charset=utf8mb4&loc=Local&parseTime=True", dsn)

	dsn, err = buildMySQLDSN(Config{DSN: "custom-dsn"})
	require.NoError(t, err)
	assert.Equal(t, "custom-dsn", dsn)
}
