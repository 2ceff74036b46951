// Package repository defines data access for probe round history.
package repository

import (
	"context"

	"github.com/Jelikton/iptv-checker/internal/models"
)

// RoundRepository persists finished probe rounds and their outcomes.
type RoundRepository interface {
	// Create stores a round together with its outcomes.
	Create(ctx context.Context, round *models.ProbeRound) error
	// GetByID retrieves a round with outcomes, or nil if it does not exist.
	GetByID(ctx context.Context, id models.ULID) (*models.ProbeRound, error)
	// List returns up to limit rounds, newest first, without outcomes.
	List(ctx context.Context, limit int) ([]*models.ProbeRound, error)
	// Latest returns the newest round with outcomes, or nil if none exist.
	Latest(ctx context.Context) (*models.ProbeRound, error)
	// Prune deletes all but the newest keep rounds and returns how many
	// were removed. keep <= 0 removes nothing.
	Prune(ctx context.Context, keep int) (int64, error)
}
