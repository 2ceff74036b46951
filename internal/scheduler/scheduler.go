// Package scheduler starts probe rounds on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Jelikton/iptv-checker/internal/observability"
	"github.com/Jelikton/iptv-checker/internal/probe"
)

// parser accepts five-field cron expressions and descriptors such as @daily.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// RoundStarter starts probe rounds and guide fetches.
type RoundStarter interface {
	FetchGuide(ctx context.Context) <-chan struct{}
	StartRound(ctx context.Context) (*probe.Round, error)
}

// Config holds scheduler settings.
type Config struct {
	// SyncInterval is how often the schedule is checked.
	// Default: 30 seconds
	SyncInterval time.Duration

	// RefreshGuide fetches the program guide again before each scheduled round.
	RefreshGuide bool
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{SyncInterval: 30 * time.Second}
}

// Scheduler starts a probe round each time its cron schedule comes due.
// A due round is skipped when another round is still running.
type Scheduler struct {
	mu sync.Mutex

	starter  RoundStarter
	expr     string
	schedule cron.Schedule
	logger   *slog.Logger
	now      func() time.Time

	syncInterval time.Duration
	refreshGuide bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	next   time.Time
}

// New creates a scheduler for expr.
func New(expr string, starter RoundStarter) (*Scheduler, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	cfg := DefaultConfig()
	return &Scheduler{
		starter:      starter,
		expr:         expr,
		schedule:     schedule,
		logger:       observability.WithComponent(slog.Default(), "scheduler"),
		now:          time.Now,
		syncInterval: cfg.SyncInterval,
	}, nil
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = observability.WithComponent(logger, "scheduler")
	return s
}

// WithConfig applies configuration to the scheduler.
func (s *Scheduler) WithConfig(cfg Config) *Scheduler {
	if cfg.SyncInterval > 0 {
		s.syncInterval = cfg.SyncInterval
	}
	s.refreshGuide = cfg.RefreshGuide
	return s
}

// Start begins checking the schedule in the background. Rounds started by
// the scheduler are cancelled when ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return errors.New("scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.next = s.schedule.Next(s.now())

	s.wg.Add(1)
	go s.syncLoop(s.ctx)

	s.logger.Info("scheduler started",
		slog.String("schedule", s.expr),
		slog.Time("next_run", s.next),
		slog.Duration("sync_interval", s.syncInterval))

	return nil
}

// Stop stops the scheduler and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// NextRun returns when the next round is due. It is zero before Start.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Scheduler) syncLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick starts a round when the schedule is due and moves next forward.
// Missed runs are not made up.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	if now.Before(s.next) {
		s.mu.Unlock()
		return
	}
	s.next = s.schedule.Next(now)
	next := s.next
	s.mu.Unlock()

	if s.refreshGuide {
		s.starter.FetchGuide(ctx)
	}

	logger := observability.WithOperation(s.logger, "scheduled_round")
	round, err := s.starter.StartRound(ctx)
	switch {
	case errors.Is(err, probe.ErrRoundInProgress):
		logger.Info("skipping scheduled probe round, one is already running",
			slog.Time("next_run", next))
	case err != nil:
		observability.WithError(logger, err).Error("failed to start scheduled probe round")
	default:
		logger.Info("scheduled probe round started",
			slog.String("round_id", round.ID().String()),
			slog.Int("channels", round.Total()),
			slog.Time("next_run", next))
	}
}

// ValidateCron validates a cron expression.
func ValidateCron(expr string) error {
	_, err := parser.Parse(expr)
	return err
}
