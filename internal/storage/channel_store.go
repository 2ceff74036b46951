package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/internal/observability"
)

var (
	// ErrChannelNotFound is returned by Update for an unknown ordinal.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrMalformedCache marks a cache file that is not a JSON array of objects.
	ErrMalformedCache = errors.New("malformed channel cache")
)

// ManifestSource provides a freshly parsed manifest.
type ManifestSource interface {
	Resource() string
	ReadManifest(ctx context.Context) (*models.Manifest, error)
}

// Source tells where a loaded channel list came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceManifest Source = "manifest"
	SourceNone     Source = "none"
)

// LoadResult is the outcome of ChannelStore.Load.
type LoadResult struct {
	Channels []models.Channel
	// GuideURL is empty when neither the manifest nor the cache metadata
	// provided one.
	GuideURL string
	Source   Source
}

// cacheMeta is stored next to the cache file so that a cache hit can still
// report the guide URL announced by the manifest.
type cacheMeta struct {
	GuideURL  string    `json:"guide_url"`
	Manifest  string    `json:"manifest,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChannelStore keeps the channel list of one manifest and its JSON cache.
// It is safe for concurrent use; callers always receive copies.
type ChannelStore struct {
	sandbox   *Sandbox
	cacheFile string
	source    ManifestSource
	logger    *slog.Logger

	mu       sync.RWMutex
	channels []models.Channel
	guideURL string
}

// NewChannelStore creates a store caching to cacheFile inside sandbox.
func NewChannelStore(sandbox *Sandbox, cacheFile string, source ManifestSource, logger *slog.Logger) *ChannelStore {
	if logger == nil {
		logger = observability.Discard()
	}
	return &ChannelStore{
		sandbox:   sandbox,
		cacheFile: cacheFile,
		source:    source,
		logger:    observability.WithComponent(logger, "channel_store"),
	}
}

// MetaFile returns the sandbox-relative path of the cache metadata file.
func (s *ChannelStore) MetaFile() string {
	return strings.TrimSuffix(s.cacheFile, filepath.Ext(s.cacheFile)) + ".meta.json"
}

// Load returns the cached channel list when the cache is readable and well
// formed. Otherwise it parses the manifest and persists the result as the
// new cache. If both are unavailable it returns an empty list. Load never
// fails.
func (s *ChannelStore) Load(ctx context.Context) LoadResult {
	if s.cacheExists() {
		channels, err := s.readCache()
		if err == nil {
			guideURL := s.readMeta()
			s.set(channels, guideURL)
			s.logger.Info("loaded channels from cache",
				slog.String("file", s.cacheFile),
				slog.Int("channels", len(channels)),
			)
			return LoadResult{Channels: slices.Clone(channels), GuideURL: guideURL, Source: SourceCache}
		}
		s.logger.Warn("channel cache unusable, parsing manifest",
			slog.String("file", s.cacheFile),
			slog.String("error", err.Error()),
		)
	} else {
		s.logger.Debug("no channel cache yet, parsing manifest", slog.String("file", s.cacheFile))
	}

	result, err := s.Rebuild(ctx)
	if err != nil {
		s.logger.Warn("no channel source available",
			slog.String("manifest", s.source.Resource()),
			slog.String("error", err.Error()),
		)
		s.set(nil, "")
		return LoadResult{Channels: []models.Channel{}, Source: SourceNone}
	}
	return result
}

// Rebuild parses the manifest ignoring the cache, then persists the result.
// Persistence failures are logged, not returned. An empty parse is not
// persisted.
func (s *ChannelStore) Rebuild(ctx context.Context) (LoadResult, error) {
	manifest, err := s.source.ReadManifest(ctx)
	if err != nil {
		return LoadResult{}, err
	}

	channels := manifest.Channels
	if channels == nil {
		channels = []models.Channel{}
	}
	s.set(channels, manifest.GuideURL)

	s.logger.Info("parsed manifest",
		slog.String("manifest", s.source.Resource()),
		slog.Int("channels", len(channels)),
		slog.Bool("guide_url", manifest.GuideURL != ""),
	)

	if len(channels) > 0 {
		if err := s.persist(channels, manifest.GuideURL); err != nil {
			s.logger.Warn("failed to write channel cache",
				slog.String("file", s.cacheFile),
				slog.String("error", err.Error()),
			)
		}
	}

	return LoadResult{Channels: slices.Clone(channels), GuideURL: manifest.GuideURL, Source: SourceManifest}, nil
}

// Channels returns a copy of the current list.
func (s *ChannelStore) Channels() []models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.channels)
}

// Channel returns the channel with the given ordinal.
func (s *ChannelStore) Channel(number int) (models.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.channels {
		if ch.Number == number {
			return ch, true
		}
	}
	return models.Channel{}, false
}

// GuideURL returns the guide URL of the current list.
func (s *ChannelStore) GuideURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.guideURL
}

// Update replaces the stream URL of the channel with the given ordinal and
// re-persists the whole list. No other field or channel changes. When the
// list cannot be saved the stored URL is left as it was.
func (s *ChannelStore) Update(ctx context.Context, number int, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.channels, func(ch models.Channel) bool { return ch.Number == number })
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrChannelNotFound, number)
	}

	// The in-memory list only changes once the new one is on disk.
	channels := slices.Clone(s.channels)
	channels[idx].URL = url
	if err := s.persist(channels, s.guideURL); err != nil {
		return fmt.Errorf("saving channel %d: %w", number, err)
	}
	s.channels = channels

	s.logger.Info("updated channel URL", slog.Int("number", number))
	return nil
}

func (s *ChannelStore) set(channels []models.Channel, guideURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = slices.Clone(channels)
	s.guideURL = guideURL
}

// cacheExists reports whether the cache file is present. Stat failures other
// than absence count as present so that readCache reports them.
func (s *ChannelStore) cacheExists() bool {
	ok, err := s.sandbox.Exists(s.cacheFile)
	if err != nil {
		return true
	}
	return ok
}

func (s *ChannelStore) readCache() ([]models.Channel, error) {
	data, err := s.sandbox.ReadFile(s.cacheFile)
	if err != nil {
		return nil, err
	}
	return DecodeChannels(data)
}

// readMeta returns the guide URL from the metadata file, or "" when the file
// is missing or unreadable.
func (s *ChannelStore) readMeta() string {
	data, err := s.sandbox.ReadFile(s.MetaFile())
	if err != nil {
		return ""
	}
	var meta cacheMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Debug("ignoring malformed cache metadata", slog.String("error", err.Error()))
		return ""
	}
	return meta.GuideURL
}

func (s *ChannelStore) persist(channels []models.Channel, guideURL string) error {
	data, err := EncodeChannels(channels)
	if err != nil {
		return err
	}
	if err := s.sandbox.AtomicWrite(s.cacheFile, data); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(cacheMeta{
		GuideURL:  guideURL,
		Manifest:  s.source.Resource(),
		UpdatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache metadata: %w", err)
	}
	return s.sandbox.AtomicWrite(s.MetaFile(), meta)
}

// DecodeChannels decodes a cache document. The document must be a JSON array
// whose elements are all objects; unknown keys are ignored and a missing or
// non-positive number is replaced by the element position plus one. Two
// channels ending up with the same number make the document malformed.
func DecodeChannels(data []byte) ([]models.Channel, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: top-level value is not an array", ErrMalformedCache)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCache, err)
	}

	channels := make([]models.Channel, 0, len(raw))
	seen := make(map[int]struct{}, len(raw))
	for i, elem := range raw {
		elem = bytes.TrimSpace(elem)
		if len(elem) == 0 || elem[0] != '{' {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrMalformedCache, i)
		}
		var ch models.Channel
		if err := json.Unmarshal(elem, &ch); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrMalformedCache, i, err)
		}
		if ch.Number < 1 {
			ch.Number = i + 1
		}
		if _, dup := seen[ch.Number]; dup {
			return nil, fmt.Errorf("%w: element %d repeats number %d", ErrMalformedCache, i, ch.Number)
		}
		seen[ch.Number] = struct{}{}
		channels = append(channels, ch)
	}
	return channels, nil
}

// EncodeChannels renders channels as an indented cache document.
func EncodeChannels(channels []models.Channel) ([]byte, error) {
	if channels == nil {
		channels = []models.Channel{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(channels); err != nil {
		return nil, fmt.Errorf("encoding channels: %w", err)
	}
	return buf.Bytes(), nil
}
