package migrations

import (
	"context"
	"testing"
	"time"

	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func newMigrator(t *testing.T) (*Migrator, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	m := NewMigrator(db, nil)
	m.RegisterAll(AllMigrations())
	return m, db
}

func TestAllMigrations_VersionsAreUniqueAndOrdered(t *testing.T) {
	migrations := AllMigrations()
	require.NotEmpty(t, migrations)

	seen := make(map[string]bool)
	for i, m := range migrations {
		assert.False(t, seen[m.Version], "duplicate version: %s", m.Version)
		seen[m.Version] = true
		assert.NotNil(t, m.Up, m.Version)
		assert.NotNil(t, m.Down, m.Version)
		if i > 0 {
			assert.Less(t, migrations[i-1].Version, m.Version)
		}
	}
}

func TestMigrator_Up(t *testing.T) {
	m, db := newMigrator(t)
	ctx := context.Background()

	require.NoError(t, m.Up(ctx))

	assert.True(t, db.Migrator().HasTable("schema_migrations"))
	assert.True(t, db.Migrator().HasTable("probe_rounds"))
	assert.True(t, db.Migrator().HasTable("probe_outcomes"))
	assert.True(t, db.Migrator().HasIndex(&models.ProbeOutcome{}, outcomeLookupIndex))

	// second run applies nothing
	require.NoError(t, m.Up(ctx))
	var count int64
	require.NoError(t, db.Model(&MigrationRecord{}).Count(&count).Error)
	assert.Equal(t, int64(len(AllMigrations())), count)
}

func TestMigrator_StatusAndPending(t *testing.T) {
	m, _ := newMigrator(t)
	ctx := context.Background()

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, len(AllMigrations()))

	require.NoError(t, m.Up(ctx))

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, len(AllMigrations()))
	for _, s := range statuses {
		assert.True(t, s.Applied, s.Version)
		assert.NotNil(t, s.AppliedAt)
	}

	pending, err = m.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMigrator_Down(t *testing.T) {
	m, db := newMigrator(t)
	ctx := context.Background()
	require.NoError(t, m.Up(ctx))

	require.NoError(t, m.Down(ctx))
	assert.False(t, db.Migrator().HasIndex(&models.ProbeOutcome{}, outcomeLookupIndex))
	assert.True(t, db.Migrator().HasTable("probe_outcomes"))

	require.NoError(t, m.Down(ctx))
	assert.False(t, db.Migrator().HasTable("probe_outcomes"))
	assert.False(t, db.Migrator().HasTable("probe_rounds"))

	// nothing left to roll back
	require.NoError(t, m.Down(ctx))

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, len(AllMigrations()))
}

func TestMigrator_DownWithoutDefinition(t *testing.T) {
	m, db := newMigrator(t)
	ctx := context.Background()
	require.NoError(t, m.Up(ctx))

	require.NoError(t, db.Create(&MigrationRecord{
		Version:     "999",
		Description: "unknown",
		AppliedAt:   time.Now().UTC(),
	}).Error)

	err := m.Down(ctx)
	assert.ErrorContains(t, err, "999")
}

func TestMigrations_CanStoreRound(t *testing.T) {
	m, db := newMigrator(t)
	require.NoError(t, m.Up(context.Background()))

	started := time.Now().UTC().Truncate(time.Second)
	round := &models.ProbeRound{
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Total:      2,
		Completed:  2,
		Reachable:  1,
		Outcomes: []models.ProbeOutcome{
			{Number: 1, Name: "One", URL: "http://a/1", Severity: models.SeverityOK, Label: "OK", StatusCode: 200},
			{Number: 2, Name: "Two", URL: "http://a/2", Severity: models.SeverityNotFound, Label: "Not found", StatusCode: 404},
		},
	}
	require.NoError(t, db.Create(round).Error)
	assert.False(t, round.ID.IsZero())

	var loaded models.ProbeRound
	require.NoError(t, db.Preload("Outcomes").First(&loaded, "id = ?", round.ID).Error)
	assert.Equal(t, 2, loaded.Total)
	require.Len(t, loaded.Outcomes, 2)
	for _, o := range loaded.Outcomes {
		assert.Equal(t, round.ID, o.RoundID)
	}
	assert.Equal(t, 3*time.Second, loaded.Duration())
}
