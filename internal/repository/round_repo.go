package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jelikton/iptv-checker/internal/models"
	"gorm.io/gorm"
)

// outcomeBatchSize bounds the rows per INSERT for large manifests.
const outcomeBatchSize = 500

// roundRepo implements RoundRepository using GORM.
type roundRepo struct {
	db *gorm.DB
}

// NewRoundRepository creates a new RoundRepository.
func NewRoundRepository(db *gorm.DB) *roundRepo {
	return &roundRepo{db: db}
}

// Create stores the round row first and then its outcomes in batches.
func (r *roundRepo) Create(ctx context.Context, round *models.ProbeRound) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		outcomes := round.Outcomes
		if err := tx.Omit("Outcomes").Create(round).Error; err != nil {
			return fmt.Errorf("creating round: %w", err)
		}
		if len(outcomes) == 0 {
			return nil
		}
		for i := range outcomes {
			outcomes[i].RoundID = round.ID
		}
		if err := tx.CreateInBatches(&outcomes, outcomeBatchSize).Error; err != nil {
			return fmt.Errorf("creating outcomes: %w", err)
		}
		return nil
	})
	return err
}

// GetByID retrieves a round by ID.
func (r *roundRepo) GetByID(ctx context.Context, id models.ULID) (*models.ProbeRound, error) {
	var round models.ProbeRound
	err := r.db.WithContext(ctx).
		Preload("Outcomes", orderByNumber).
		Where("id = ?", id).
		First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting round by ID: %w", err)
	}
	return &round, nil
}

// List returns recent rounds.
func (r *roundRepo) List(ctx context.Context, limit int) ([]*models.ProbeRound, error) {
	query := r.db.WithContext(ctx).Order("started_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rounds []*models.ProbeRound
	if err := query.Find(&rounds).Error; err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	return rounds, nil
}

// Latest returns the most recent round.
func (r *roundRepo) Latest(ctx context.Context) (*models.ProbeRound, error) {
	var round models.ProbeRound
	err := r.db.WithContext(ctx).
		Preload("Outcomes", orderByNumber).
		Order("started_at DESC, id DESC").
		First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting latest round: %w", err)
	}
	return &round, nil
}

// Prune removes old rounds beyond keep.
func (r *roundRepo) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	// offsets without a limit are not portable across drivers
	var ids []models.ULID
	err := r.db.WithContext(ctx).
		Model(&models.ProbeRound{}).
		Order("started_at DESC, id DESC").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("finding stale rounds: %w", err)
	}
	if len(ids) <= keep {
		return 0, nil
	}
	stale := ids[keep:]

	var removed int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("round_id IN ?", stale).Delete(&models.ProbeOutcome{}).Error; err != nil {
			return fmt.Errorf("deleting outcomes: %w", err)
		}
		result := tx.Where("id IN ?", stale).Delete(&models.ProbeRound{})
		if result.Error != nil {
			return fmt.Errorf("deleting rounds: %w", result.Error)
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func orderByNumber(db *gorm.DB) *gorm.DB {
	return db.Order("number ASC")
}

var _ RoundRepository = (*roundRepo)(nil)
