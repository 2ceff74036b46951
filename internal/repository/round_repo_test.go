package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Jelikton/iptv-checker/internal/config"
	"github.com/Jelikton/iptv-checker/internal/database"
	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRoundTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Enabled:  true,
		Driver:   "sqlite",
		DSN:      ":memory:",
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db.DB
}

var roundBase = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newRound(offset time.Duration, outcomes ...models.ProbeOutcome) *models.ProbeRound {
	reachable := 0
	for _, o := range outcomes {
		if o.Severity.IsReachable() {
			reachable++
		}
	}
	return &models.ProbeRound{
		StartedAt:  roundBase.Add(offset),
		FinishedAt: roundBase.Add(offset + 2*time.Second),
		Total:      len(outcomes),
		Completed:  len(outcomes),
		Reachable:  reachable,
		Outcomes:   outcomes,
	}
}

func outcome(number int, severity models.Severity, label string, code int) models.ProbeOutcome {
	return models.ProbeOutcome{
		Number:     number,
		Name:       "Channel",
		URL:        "http://example.com/live.m3u8",
		Severity:   severity,
		Label:      label,
		StatusCode: code,
	}
}

func TestRoundRepo_CreateAndGetByID(t *testing.T) {
	repo := NewRoundRepository(setupRoundTestDB(t))
	ctx := context.Background()

	round := newRound(0,
		outcome(2, models.SeverityNotFound, "Not found", 404),
		outcome(1, models.SeverityOK, "OK", 200),
		outcome(3, models.SeverityTimeout, "Timeout", 0),
	)
	require.NoError(t, repo.Create(ctx, round))
	assert.False(t, round.ID.IsZero())

	found, err := repo.GetByID(ctx, round.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 3, found.Total)
	assert.Equal(t, 1, found.Reachable)

	require.Len(t, found.Outcomes, 3)
	for i, o := range found.Outcomes {
		assert.Equal(t, i+1, o.Number)
		assert.Equal(t, round.ID, o.RoundID)
	}
	assert.Equal(t, models.ProbeResult{Label: "Not found", StatusCode: 404, Severity: models.SeverityNotFound},
		found.Outcomes[1].Result())
}

func TestRoundRepo_GetByIDMissing(t *testing.T) {
	repo := NewRoundRepository(setupRoundTestDB(t))

	found, err := repo.GetByID(context.Background(), models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRoundRepo_CreateWithoutOutcomes(t *testing.T) {
	repo := NewRoundRepository(setupRoundTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRound(0)))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Empty(t, latest.Outcomes)
}

func TestRoundRepo_ListAndLatest(t *testing.T) {
	repo := NewRoundRepository(setupRoundTestDB(t))
	ctx := context.Background()

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	for i := range 3 {
		r := newRound(time.Duration(i)*time.Minute, outcome(1, models.SeverityOK, "OK", 200))
		r.Skipped = i
		require.NoError(t, repo.Create(ctx, r))
	}

	rounds, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, 2, rounds[0].Skipped)
	assert.Equal(t, 1, rounds[1].Skipped)
	assert.Empty(t, rounds[0].Outcomes)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	latest, err = repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.Skipped)
	assert.Len(t, latest.Outcomes, 1)
}

func TestRoundRepo_Prune(t *testing.T) {
	db := setupRoundTestDB(t)
	repo := NewRoundRepository(db)
	ctx := context.Background()

	for i := range 5 {
		r := newRound(time.Duration(i)*time.Minute,
			outcome(1, models.SeverityOK, "OK", 200),
			outcome(2, models.SeverityForbidden, "Forbidden", 403),
		)
		r.Skipped = i
		require.NoError(t, repo.Create(ctx, r))
	}

	removed, err := repo.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = repo.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	rounds, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, 4, rounds[0].Skipped)
	assert.Equal(t, 3, rounds[1].Skipped)

	var outcomes int64
	require.NoError(t, db.Model(&models.ProbeOutcome{}).Count(&outcomes).Error)
	assert.Equal(t, int64(4), outcomes)

	removed, err = repo.Prune(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
