// Package service ties the channel store, guide loader and probe coordinator
// together into per-channel views for the presentation layers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jelikton/iptv-checker/internal/guide"
	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/internal/observability"
	"github.com/Jelikton/iptv-checker/internal/probe"
	"github.com/Jelikton/iptv-checker/internal/repository"
	"github.com/Jelikton/iptv-checker/internal/storage"
	"github.com/Jelikton/iptv-checker/internal/urlutil"
	"github.com/Jelikton/iptv-checker/pkg/httpclient"
)

// ChannelStore is the subset of storage.ChannelStore used by the Checker.
type ChannelStore interface {
	Load(ctx context.Context) storage.LoadResult
	Rebuild(ctx context.Context) (storage.LoadResult, error)
	Channels() []models.Channel
	Channel(number int) (models.Channel, bool)
	GuideURL() string
	Update(ctx context.Context, number int, url string) error
}

// GuideFetcher builds a guide index for a feed URL, never failing.
type GuideFetcher interface {
	Fetch(ctx context.Context, url string, timeLimit time.Duration, sizeLimit int64) *guide.Index
}

// Options configures a Checker.
type Options struct {
	// GuideURL overrides the guide URL announced by the manifest.
	GuideURL     string
	// GuideTimeout and GuideMaxSize fall back to the loader defaults when zero.
	GuideTimeout time.Duration
	GuideMaxSize int64
	Round        probe.RoundOptions
	// HistoryLimit is the number of stored rounds kept (0 = keep all).
	HistoryLimit int
}

// ChannelView is one channel merged with what is airing now and its latest
// probe result. Status is nil while the channel has not been probed.
type ChannelView struct {
	models.Channel
	NowPlaying string              `json:"now_playing,omitempty"`
	Status     *models.ProbeResult `json:"status,omitempty"`
}

// GuideStatus describes the currently published guide index.
type GuideStatus struct {
	URL        string    `json:"url"`
	Loading    bool      `json:"loading"`
	Loaded     bool      `json:"loaded"`
	Channels   int       `json:"channels"`
	Programmes int       `json:"programmes"`
	LoadedAt   time.Time `json:"loaded_at,omitzero"`
}

// RoundStatus describes the active or most recent probing round.
type RoundStatus struct {
	ID        string                  `json:"id"`
	Active    bool                    `json:"active"`
	Cancelled bool                    `json:"cancelled"`
	Total     int                     `json:"total"`
	Completed int                     `json:"completed"`
	Skipped   int                     `json:"skipped"`
	Progress  float64                 `json:"progress"`
	Reachable int                     `json:"reachable"`
	Counts    map[models.Severity]int `json:"counts"`
	StartedAt time.Time               `json:"started_at"`
	Duration  time.Duration           `json:"duration"`
}

// Checker orchestrates loading, guide fetching and probing. Presentation
// adapters read only the channel list, the guide index and the status
// mapping through it.
type Checker struct {
	store       ChannelStore
	guides      GuideFetcher
	coordinator *probe.Coordinator
	history     repository.RoundRepository
	opts        Options
	logger      *slog.Logger
	now         func() time.Time

	guideMu       sync.Mutex
	guideGen      atomic.Uint64
	guideFetches  atomic.Int32
	guideIdx      atomic.Pointer[guide.Index]
	guideLoadedAt atomic.Pointer[time.Time]

	mu       sync.Mutex
	baseline map[int]models.ProbeResult
	rechecks map[int]models.ProbeResult

	background sync.WaitGroup
}

// NewChecker creates a Checker.
func NewChecker(store ChannelStore, guides GuideFetcher, coordinator *probe.Coordinator, opts Options) *Checker {
	c := &Checker{
		store:       store,
		guides:      guides,
		coordinator: coordinator,
		opts:        opts,
		logger:      observability.WithComponent(observability.Discard(), "checker"),
		now:         time.Now,
		rechecks:    make(map[int]models.ProbeResult),
	}
	c.guideIdx.Store(guide.Empty())
	return c
}

// WithLogger sets the logger.
func (c *Checker) WithLogger(logger *slog.Logger) *Checker {
	if logger != nil {
		c.logger = observability.WithComponent(logger, "checker")
	}
	return c
}

// WithHistory enables persisting finished rounds.
func (c *Checker) WithHistory(repo repository.RoundRepository) *Checker {
	c.history = repo
	return c
}

// Load loads the channel list, rebuilding it from the manifest when refresh
// is set.
func (c *Checker) Load(ctx context.Context, refresh bool) (storage.LoadResult, error) {
	if refresh {
		res, err := c.store.Rebuild(ctx)
		if err != nil {
			return res, fmt.Errorf("rebuilding channel list: %w", err)
		}
		return res, nil
	}
	return c.store.Load(ctx), nil
}

// Channels returns a copy of the loaded channel list.
func (c *Checker) Channels() []models.Channel {
	return c.store.Channels()
}

// Groups returns the distinct channel groups in manifest order.
func (c *Checker) Groups() []string {
	return models.Groups(c.store.Channels())
}

// GuideURL returns the configured guide URL, or the one from the manifest.
func (c *Checker) GuideURL() string {
	if u := strings.TrimSpace(c.opts.GuideURL); u != "" {
		return u
	}
	return c.store.GuideURL()
}

// Guide returns the currently published guide index.
func (c *Checker) Guide() *guide.Index {
	return c.guideIdx.Load()
}

// FetchGuide loads the guide in the background and publishes the index once
// it is complete. The returned channel is closed when the fetch ends. When
// fetches overlap only the most recently started one publishes its index.
func (c *Checker) FetchGuide(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	url := c.GuideURL()

	gen := c.guideGen.Add(1)
	c.guideFetches.Add(1)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		defer close(done)
		defer c.guideFetches.Add(-1)

		idx := c.guides.Fetch(ctx, url, c.opts.GuideTimeout, c.opts.GuideMaxSize)
		if idx == nil {
			idx = guide.Empty()
		}
		if !c.publishGuide(gen, idx) {
			c.logger.DebugContext(ctx, "discarding superseded guide fetch")
			return
		}

		if idx.IsEmpty() {
			c.logger.WarnContext(ctx, "guide published without programmes",
				slog.String("url", httpclient.ObfuscateURL(url)),
			)
			return
		}
		c.logger.InfoContext(ctx, "guide published",
			slog.Int("channels", idx.Channels()),
			slog.Int("programmes", idx.Programmes()),
		)
	}()
	return done
}

// publishGuide stores idx unless a newer fetch has been started since gen.
func (c *Checker) publishGuide(gen uint64, idx *guide.Index) bool {
	c.guideMu.Lock()
	defer c.guideMu.Unlock()
	if c.guideGen.Load() != gen {
		return false
	}
	c.guideIdx.Store(idx)
	loadedAt := c.now()
	c.guideLoadedAt.Store(&loadedAt)
	return true
}

// GuideStatus reports the state of the guide index.
func (c *Checker) GuideStatus() GuideStatus {
	idx := c.Guide()
	status := GuideStatus{
		URL:        httpclient.ObfuscateURL(c.GuideURL()),
		Loading:    c.guideFetches.Load() > 0,
		Channels:   idx.Channels(),
		Programmes: idx.Programmes(),
	}
	if at := c.guideLoadedAt.Load(); at != nil {
		status.Loaded = true
		status.LoadedAt = *at
	}
	return status
}

// StartRound probes every loaded channel. The round runs in the background;
// when it finishes it is written to the history if one is configured.
func (c *Checker) StartRound(ctx context.Context) (*probe.Round, error) {
	channels := c.store.Channels()
	round, err := c.coordinator.ProbeAll(ctx, channels, c.opts.Round)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	clear(c.rechecks)
	c.mu.Unlock()

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		<-round.Done()

		if err := c.RecordHistory(context.WithoutCancel(ctx), round, channels); err != nil {
			observability.WithError(c.logger, err).Warn("failed to record probe round")
		}
	}()
	return round, nil
}

// CancelRound cancels the active round. It reports whether one was running.
func (c *Checker) CancelRound() bool {
	round := c.coordinator.Active()
	if round == nil {
		return false
	}
	round.Cancel()
	return true
}

// RoundStatus reports the active round, or the last one. It returns false
// when no round has run.
func (c *Checker) RoundStatus() (RoundStatus, bool) {
	round := c.coordinator.Active()
	if round == nil {
		round = c.coordinator.Last()
	}
	if round == nil {
		return RoundStatus{}, false
	}
	return RoundStatus{
		ID:        round.ID().String(),
		Active:    !round.Finished(),
		Cancelled: round.Cancelled(),
		Total:     round.Total(),
		Completed: round.Completed(),
		Skipped:   round.Skipped(),
		Progress:  round.Progress(),
		Reachable: round.Reachable(),
		Counts:    round.Counts(),
		StartedAt: round.StartedAt(),
		Duration:  round.Duration(),
	}, true
}

// RecordHistory persists a finished round and prunes old ones.
func (c *Checker) RecordHistory(ctx context.Context, round *probe.Round, channels []models.Channel) error {
	if c.history == nil {
		return nil
	}
	if err := c.history.Create(ctx, round.Record(channels)); err != nil {
		return err
	}
	if c.opts.HistoryLimit > 0 {
		removed, err := c.history.Prune(ctx, c.opts.HistoryLimit)
		if err != nil {
			return fmt.Errorf("pruning history: %w", err)
		}
		if removed > 0 {
			c.logger.DebugContext(ctx, "pruned probe history", slog.Int64("removed", removed))
		}
	}
	return nil
}

// RestoreLatest seeds the statuses from the newest stored round. Outcomes
// are matched by channel number and only apply until a round is started.
func (c *Checker) RestoreLatest(ctx context.Context) (*models.ProbeRound, error) {
	if c.history == nil {
		return nil, nil
	}
	latest, err := c.history.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	baseline := make(map[int]models.ProbeResult, len(latest.Outcomes))
	for _, o := range latest.Outcomes {
		baseline[o.Number] = o.Result()
	}
	c.mu.Lock()
	c.baseline = baseline
	c.mu.Unlock()
	return latest, nil
}

// Rounds returns recent stored rounds, newest first.
func (c *Checker) Rounds(ctx context.Context, limit int) ([]*models.ProbeRound, error) {
	if c.history == nil {
		return nil, nil
	}
	return c.history.List(ctx, limit)
}

// Round returns a stored round with its outcomes, or nil when it does not
// exist or history is disabled.
func (c *Checker) Round(ctx context.Context, id string) (*models.ProbeRound, error) {
	if c.history == nil {
		return nil, nil
	}
	parsed, err := models.ParseULID(strings.TrimSpace(id))
	if err != nil {
		return nil, models.ErrValidation{Field: "id", Message: err.Error()}
	}
	return c.history.GetByID(ctx, parsed)
}

// Statuses returns a snapshot of the current number to result mapping.
// It may be partial while a round is running.
func (c *Checker) Statuses() map[int]models.ProbeResult {
	if c.coordinator.Last() != nil {
		return c.coordinator.Results()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]models.ProbeResult, len(c.baseline)+len(c.rechecks))
	for n, r := range c.baseline {
		out[n] = r
	}
	for n, r := range c.rechecks {
		out[n] = r
	}
	return out
}

// Views returns the filtered channels with now-playing and status.
func (c *Checker) Views(filter models.ChannelFilter) []ChannelView {
	channels := filter.Apply(c.store.Channels())
	statuses := c.Statuses()
	idx := c.Guide()
	now := c.now()

	views := make([]ChannelView, len(channels))
	for i, ch := range channels {
		views[i] = c.view(ch, statuses, idx, now)
	}
	return views
}

// View returns the view of one channel.
func (c *Checker) View(number int) (ChannelView, bool) {
	ch, ok := c.store.Channel(number)
	if !ok {
		return ChannelView{}, false
	}
	return c.view(ch, c.Statuses(), c.Guide(), c.now()), true
}

// Schedule returns the guide entries of one channel that have not ended yet,
// in start order. The second result is false for an unknown channel.
func (c *Checker) Schedule(number int) ([]guide.Entry, bool) {
	ch, ok := c.store.Channel(number)
	if !ok {
		return nil, false
	}
	if strings.TrimSpace(ch.TvgID) == "" {
		return []guide.Entry{}, true
	}
	now := c.now().UTC()
	entries := c.Guide().Entries(ch.TvgID)
	upcoming := make([]guide.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Stop.After(now) {
			upcoming = append(upcoming, e)
		}
	}
	return upcoming, true
}

func (c *Checker) view(ch models.Channel, statuses map[int]models.ProbeResult, idx *guide.Index, now time.Time) ChannelView {
	v := ChannelView{Channel: ch}
	if title, ok := guide.CurrentProgram(ch.TvgID, idx, now); ok {
		v.NowPlaying = title
	}
	if r, ok := statuses[ch.Number]; ok {
		v.Status = &r
	}
	return v
}

// UpdateURL replaces a channel's stream URL and rechecks it immediately.
// While a round is running the recheck is skipped and the channel keeps the
// status the round assigns.
func (c *Checker) UpdateURL(ctx context.Context, number int, url string) (ChannelView, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return ChannelView{}, models.ErrValidation{Field: "url", Message: models.ErrURLRequired.Error()}
	}
	if err := urlutil.ValidateURL(url); err != nil {
		return ChannelView{}, models.ErrValidation{Field: "url", Message: err.Error()}
	}
	if err := c.store.Update(ctx, number, url); err != nil {
		return ChannelView{}, err
	}

	ch, ok := c.store.Channel(number)
	if !ok {
		return ChannelView{}, fmt.Errorf("channel %d: %w", number, storage.ErrChannelNotFound)
	}

	result, err := c.coordinator.Recheck(ctx, ch, c.opts.Round.Timeout)
	switch {
	case errors.Is(err, probe.ErrRoundInProgress):
		c.logger.InfoContext(ctx, "recheck skipped, round in progress", slog.Int("number", number))
	case err != nil:
		return ChannelView{}, err
	default:
		c.mu.Lock()
		c.rechecks[number] = result
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "channel rechecked",
			slog.Int("number", number),
			slog.String("status", probe.Describe(result)),
		)
	}

	v, _ := c.View(number)
	return v, nil
}

// Close waits for background guide fetches and history writes.
func (c *Checker) Close() {
	c.background.Wait()
}
