// Package ingestor turns playlist and guide resources into channel lists and
// guide indexes.
package ingestor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/internal/observability"
	"github.com/Jelikton/iptv-checker/pkg/m3u"
)

// ErrSourceUnavailable matches any SourceUnavailableError via errors.Is.
var ErrSourceUnavailable = errors.New("source unavailable")

// SourceUnavailableError reports a manifest or cache that could not be read.
type SourceUnavailableError struct {
	Resource string
	Err      error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source unavailable: %s: %v", e.Resource, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// Is reports ErrSourceUnavailable as a match.
func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// ManifestFile reads a playlist from the local filesystem.
type ManifestFile struct {
	Path   string
	Logger *slog.Logger
}

// Resource returns the path of the manifest.
func (f ManifestFile) Resource() string {
	return f.Path
}

// ReadManifest opens and parses the manifest. A missing or unreadable file
// yields a *SourceUnavailableError.
func (f ManifestFile) ReadManifest(ctx context.Context) (*models.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return nil, &SourceUnavailableError{Resource: f.Path, Err: err}
	}
	defer file.Close()

	manifest, err := ParseManifest(file, f.Logger)
	if err != nil {
		return nil, &SourceUnavailableError{Resource: f.Path, Err: err}
	}
	return manifest, nil
}

// ParseManifest parses playlist text into channels numbered 1..N in manifest
// order. Metadata lines without a following URL are dropped and logged.
func ParseManifest(r io.Reader, logger *slog.Logger) (*models.Manifest, error) {
	if logger == nil {
		logger = observability.Discard()
	}

	manifest := &models.Manifest{Channels: []models.Channel{}}
	dropped := 0

	parser := &m3u.Parser{
		OnHeader: func(h m3u.Header) {
			manifest.GuideURL = strings.TrimSpace(h.GuideURL)
		},
		OnEntry: func(entry *m3u.Entry) error {
			manifest.Channels = append(manifest.Channels, channelFromEntry(entry, len(manifest.Channels)+1))
			return nil
		},
		OnError: func(lineNum int, err error) {
			dropped++
			logger.Debug("skipping manifest entry",
				slog.Int("line", lineNum),
				slog.String("error", err.Error()),
			)
		},
	}

	if err := parser.Parse(r); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	if dropped > 0 {
		logger.Info("dropped manifest entries without stream URL", slog.Int("count", dropped))
	}
	return manifest, nil
}

func channelFromEntry(entry *m3u.Entry, number int) models.Channel {
	name := strings.TrimSpace(entry.Title)
	if name == "" {
		name = "Channel " + strconv.Itoa(number)
	}

	tvgName := strings.TrimSpace(entry.TvgName)
	if tvgName == "" {
		tvgName = name
	}

	group := strings.TrimSpace(entry.GroupTitle)
	if group == "" {
		group = models.DefaultGroup
	}

	return models.Channel{
		Number:  number,
		Name:    name,
		TvgName: tvgName,
		Logo:    strings.TrimSpace(entry.TvgLogo),
		Group:   group,
		TvgID:   strings.TrimSpace(entry.TvgID),
		URL:     entry.URL,
	}
}
