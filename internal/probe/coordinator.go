package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/ratelimit"

	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/internal/observability"
	"github.com/Jelikton/iptv-checker/internal/progress"
)

// DefaultMaxConcurrency bounds the number of probes in flight.
const DefaultMaxConcurrency = 20

// ErrRoundInProgress is returned when a round is requested while another one
// is still running.
var ErrRoundInProgress = errors.New("probe round already in progress")

// RoundOptions configures one probing round.
type RoundOptions struct {
	// Timeout bounds each probe. Defaults to DefaultTimeout.
	Timeout time.Duration
	// MaxConcurrency bounds the probes in flight. Defaults to DefaultMaxConcurrency.
	MaxConcurrency int
	// RateLimit caps probe starts per second (0 = unlimited).
	RateLimit int
}

func (o RoundOptions) withDefaults() RoundOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.RateLimit < 0 {
		o.RateLimit = 0
	}
	return o
}

// Event reports one finished probe.
type Event struct {
	Number int
	Result models.ProbeResult
}

type target struct {
	number int
	name   string
	url    string
}

// Coordinator runs probing rounds, at most one at a time.
type Coordinator struct {
	prober   URLProber
	logger   *slog.Logger
	reporter progress.Reporter

	active atomic.Pointer[Round]
	last   atomic.Pointer[Round]
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReporter sets the progress reporter receiving per-probe updates.
func WithReporter(reporter progress.Reporter) CoordinatorOption {
	return func(c *Coordinator) {
		if reporter != nil {
			c.reporter = reporter
		}
	}
}

// NewCoordinator creates a coordinator using prober for every probe.
func NewCoordinator(prober URLProber, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		prober:   prober,
		logger:   observability.Discard(),
		reporter: progress.NilReporter{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = observability.WithComponent(c.logger, "probe_coordinator")
	return c
}

// ProbeAll starts a round probing every channel and returns immediately.
// Channel URLs are snapshotted, so later changes to channels do not affect
// the round. Cancelling ctx has the same effect as Round.Cancel.
func (c *Coordinator) ProbeAll(ctx context.Context, channels []models.Channel, opts RoundOptions) (*Round, error) {
	opts = opts.withDefaults()

	targets := make([]target, len(channels))
	for i, ch := range channels {
		targets[i] = target{number: ch.Number, name: ch.Name, url: ch.URL}
	}

	round := newRound(len(targets))
	if !c.active.CompareAndSwap(nil, round) {
		return nil, ErrRoundInProgress
	}

	pool, err := ants.NewPool(opts.MaxConcurrency, ants.WithPanicHandler(func(p any) {
		c.logger.Error("probe task panicked", slog.Any("panic", p))
	}))
	if err != nil {
		c.active.Store(nil)
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	limiter := ratelimit.NewUnlimited()
	if opts.RateLimit > 0 {
		limiter = ratelimit.New(opts.RateLimit)
	}

	stop := context.AfterFunc(ctx, round.Cancel)
	probeCtx := context.WithoutCancel(ctx)

	c.last.Store(round)
	c.logger.Info("probe round started",
		slog.String("round_id", round.ID().String()),
		slog.Int("channels", len(targets)),
		slog.Int("max_concurrency", opts.MaxConcurrency),
		slog.Duration("timeout", opts.Timeout),
	)

	go func() {
		defer stop()
		defer pool.Release()

		var wg sync.WaitGroup
		for _, t := range targets {
			if round.Cancelled() {
				round.skip()
				continue
			}
			limiter.Take()

			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				c.run(probeCtx, round, t, opts.Timeout)
			})
			if submitErr != nil {
				wg.Done()
				c.logger.Warn("failed to schedule probe",
					slog.Int("number", t.number),
					slog.String("error", submitErr.Error()),
				)
				round.record(t.number, models.ResultUnknown)
			}
		}
		wg.Wait()

		c.active.CompareAndSwap(round, nil)
		round.finish()

		c.logger.Info("probe round finished",
			slog.String("round_id", round.ID().String()),
			slog.Int("completed", round.Completed()),
			slog.Int("skipped", round.Skipped()),
			slog.Int("reachable", round.Reachable()),
			slog.Bool("cancelled", round.Cancelled()),
			slog.Duration("duration", round.Duration()),
		)
	}()

	return round, nil
}

func (c *Coordinator) run(ctx context.Context, round *Round, t target, timeout time.Duration) {
	if round.Cancelled() {
		round.skip()
		return
	}

	result := c.probe(ctx, t.url, timeout)
	completed := round.record(t.number, result)
	c.reporter.ReportItemProgress(completed, round.Total(), t.name)
}

// probe calls the prober, turning a panic into an unknown result.
func (c *Coordinator) probe(ctx context.Context, url string, timeout time.Duration) (result models.ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("prober panicked", slog.Any("panic", r))
			result = models.ResultUnknown
		}
	}()
	return c.prober.Probe(ctx, url, timeout)
}

// Recheck probes a single channel outside of a round and stores the result
// in the round that was most recent when the recheck began. A round started
// while the recheck runs is left untouched. It is refused while a round is
// active.
func (c *Coordinator) Recheck(ctx context.Context, ch models.Channel, timeout time.Duration) (models.ProbeResult, error) {
	last := c.last.Load()
	if c.active.Load() != nil {
		return models.ProbeResult{}, ErrRoundInProgress
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	result := c.probe(ctx, ch.URL, timeout)
	if last != nil {
		last.results.Store(ch.Number, result)
	}
	return result, nil
}

// Active returns the running round, or nil.
func (c *Coordinator) Active() *Round {
	return c.active.Load()
}

// Last returns the most recently started round, or nil.
func (c *Coordinator) Last() *Round {
	return c.last.Load()
}

// Results returns a snapshot of the most recent round's results.
func (c *Coordinator) Results() map[int]models.ProbeResult {
	if last := c.last.Load(); last != nil {
		return last.Results()
	}
	return map[int]models.ProbeResult{}
}

// Round is one pass over a channel list. Its result map is written by
// concurrent probe tasks, each owning exactly one key.
type Round struct {
	id        models.ULID
	startedAt time.Time
	total     int

	results   *xsync.MapOf[int, models.ProbeResult]
	completed atomic.Int64
	skipped   atomic.Int64
	cancelled atomic.Bool

	events chan Event
	done   chan struct{}

	mu         sync.RWMutex
	finishedAt time.Time
}

func newRound(total int) *Round {
	return &Round{
		id:        models.NewULID(),
		startedAt: time.Now(),
		total:     total,
		results:   xsync.NewMapOfPresized[int, models.ProbeResult](total),
		events:    make(chan Event, total),
		done:      make(chan struct{}),
	}
}

// ID returns the round identifier.
func (r *Round) ID() models.ULID { return r.id }

// StartedAt returns when the round was started.
func (r *Round) StartedAt() time.Time { return r.startedAt }

// Total returns the number of channels in the round.
func (r *Round) Total() int { return r.total }

// Completed returns the number of finished probes. It never decreases.
func (r *Round) Completed() int { return int(r.completed.Load()) }

// Skipped returns the number of probes skipped after cancellation.
func (r *Round) Skipped() int { return int(r.skipped.Load()) }

// Progress returns Completed/Total, or 1 for an empty round.
func (r *Round) Progress() float64 {
	if r.total == 0 {
		return 1
	}
	return float64(r.Completed()) / float64(r.total)
}

// Events yields one event per finished probe in completion order. The
// channel is closed when the round ends.
func (r *Round) Events() <-chan Event { return r.events }

// Done is closed once every probe has finished or been skipped.
func (r *Round) Done() <-chan struct{} { return r.done }

// Finished reports whether the round has ended.
func (r *Round) Finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the round ends or ctx is done.
func (r *Round) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops launching probes. Probes already in flight run to completion;
// the rest are skipped.
func (r *Round) Cancel() { r.cancelled.Store(true) }

// Cancelled reports whether Cancel was called.
func (r *Round) Cancelled() bool { return r.cancelled.Load() }

// Result returns the result for one channel, if it has finished.
func (r *Round) Result(number int) (models.ProbeResult, bool) {
	return r.results.Load(number)
}

// Results returns a snapshot of the result map. During a round it holds only
// the probes finished so far.
func (r *Round) Results() map[int]models.ProbeResult {
	out := make(map[int]models.ProbeResult, r.results.Size())
	r.results.Range(func(number int, result models.ProbeResult) bool {
		out[number] = result
		return true
	})
	return out
}

// Reachable returns the number of results with an ok severity.
func (r *Round) Reachable() int {
	n := 0
	r.results.Range(func(_ int, result models.ProbeResult) bool {
		if result.Severity.IsReachable() {
			n++
		}
		return true
	})
	return n
}

// Counts returns the number of results per severity.
func (r *Round) Counts() map[models.Severity]int {
	counts := make(map[models.Severity]int)
	r.results.Range(func(_ int, result models.ProbeResult) bool {
		counts[result.Severity]++
		return true
	})
	return counts
}

// FinishedAt returns when the round ended, or the zero time while running.
func (r *Round) FinishedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finishedAt
}

// Duration returns the elapsed time of the round so far.
func (r *Round) Duration() time.Duration {
	if end := r.FinishedAt(); !end.IsZero() {
		return end.Sub(r.startedAt)
	}
	return time.Since(r.startedAt)
}

// Record converts a finished round into its persisted form. Outcomes are
// attached for every channel in channels that has a result.
func (r *Round) Record(channels []models.Channel) *models.ProbeRound {
	results := r.Results()
	record := &models.ProbeRound{
		StartedAt:  r.startedAt,
		FinishedAt: r.FinishedAt(),
		Total:      r.total,
		Completed:  r.Completed(),
		Skipped:    r.Skipped(),
		Cancelled:  r.Cancelled(),
	}
	record.ID = r.id

	for _, ch := range channels {
		result, ok := results[ch.Number]
		if !ok {
			continue
		}
		if result.Severity.IsReachable() {
			record.Reachable++
		}
		record.Outcomes = append(record.Outcomes, models.ProbeOutcome{
			Number:     ch.Number,
			Name:       ch.Name,
			URL:        ch.URL,
			Severity:   result.Severity,
			Label:      result.Label,
			StatusCode: result.StatusCode,
		})
	}
	return record
}

func (r *Round) record(number int, result models.ProbeResult) int {
	r.results.Store(number, result)
	completed := r.completed.Add(1)
	r.events <- Event{Number: number, Result: result}
	return int(completed)
}

func (r *Round) skip() { r.skipped.Add(1) }

func (r *Round) finish() {
	r.mu.Lock()
	r.finishedAt = time.Now()
	r.mu.Unlock()
	close(r.events)
	close(r.done)
}
