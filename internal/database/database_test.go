package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Jelikton/iptv-checker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testConfig(dsn string) config.DatabaseConfig {
	return config.DatabaseConfig{
		Enabled:  true,
		Driver:   "sqlite",
		DSN:      dsn,
		LogLevel: "silent",
	}
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(testConfig(":memory:"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_SQLite(t *testing.T) {
	db := setupTestDB(t)

	assert.NoError(t, db.Ping(context.Background()))
	assert.Equal(t, "sqlite", db.Driver())
}

func TestNew_InvalidDriver(t *testing.T) {
	db, err := New(config.DatabaseConfig{Driver: "oracle", DSN: ":memory:"}, nil)
	assert.Nil(t, db)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestDB_Close(t *testing.T) {
	db, err := New(testConfig(":memory:"), nil)
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}

func TestDB_SQLitePragmas(t *testing.T) {
	db := setupTestDB(t)

	var foreignKeys int
	require.NoError(t, db.DB.Raw("PRAGMA foreign_keys").Scan(&foreignKeys).Error)
	assert.Equal(t, 1, foreignKeys)
}

func TestDB_FileUsesWAL(t *testing.T) {
	db, err := New(testConfig(filepath.Join(t.TempDir(), "history.db")), nil)
	require.NoError(t, err)
	defer db.Close()

	var journalMode string
	require.NoError(t, db.DB.Raw("PRAGMA journal_mode").Scan(&journalMode).Error)
	assert.Equal(t, "wal", journalMode)
}

func TestOpen_AppliesMigrations(t *testing.T) {
	db, err := Open(context.Background(), testConfig(":memory:"), nil)
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, db.Migrator().HasTable("probe_rounds"))
	assert.True(t, db.Migrator().HasTable("probe_outcomes"))

	// idempotent
	assert.NoError(t, db.Migrate(context.Background()))
}

func TestDB_Transaction(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	type item struct {
		ID    uint   `gorm:"primarykey"`
		Value string `gorm:"not null"`
	}
	require.NoError(t, db.DB.AutoMigrate(&item{}))

	require.NoError(t, db.Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&item{Value: "kept"}).Error
	}))

	errRollback := errors.New("forced rollback")
	err := db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&item{Value: "dropped"}).Error; err != nil {
			return err
		}
		return errRollback
	})
	assert.ErrorIs(t, err, errRollback)

	var values []string
	require.NoError(t, db.DB.Model(&item{}).Order("id").Pluck("value", &values).Error)
	assert.Equal(t, []string{"kept"}, values)
}

func TestGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected logger.LogLevel
	}{
		{"silent", logger.Silent},
		{"error", logger.Error},
		{"warn", logger.Warn},
		{"info", logger.Info},
		{"unknown", logger.Warn},
		{"", logger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, gormLogLevel(tt.level))
		})
	}
}

func TestTruncateSQL(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, truncateSQL(short))

	long := make([]byte, maxSQLLogLength+50)
	for i := range long {
		long[i] = 'x'
	}
	got := truncateSQL(string(long))
	assert.Len(t, got, maxSQLLogLength+len("... (truncated)"))
}
