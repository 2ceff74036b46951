package ingestor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Jelikton/iptv-checker/internal/guide"
	"github.com/Jelikton/iptv-checker/internal/observability"
	"github.com/Jelikton/iptv-checker/internal/urlutil"
	"github.com/Jelikton/iptv-checker/pkg/httpclient"
	"github.com/Jelikton/iptv-checker/pkg/xmltv"
)

// Guide loader defaults.
const (
	DefaultGuideTimeout = 30 * time.Second
	DefaultGuideMaxSize = 75 * 1024 * 1024
)

// ErrGuideTooLarge is reported when the decompressed guide exceeds the size limit.
var ErrGuideTooLarge = errors.New("guide document exceeds size limit")

// GuideStats summarises one guide load.
type GuideStats struct {
	Compression xmltv.Compression
	Bytes       int64
	Programmes  int
	Skipped     int
	Duration    time.Duration
}

// GuideLoader fetches, decompresses and indexes XMLTV guide documents.
// Every failure is absorbed into an empty index.
type GuideLoader struct {
	fetcher *urlutil.ResourceFetcher
	logger  *slog.Logger
}

// NewGuideLoader creates a loader. The request deadline comes from the time
// limit passed to Fetch, so cfg.Timeout is ignored.
func NewGuideLoader(cfg httpclient.Config, logger *slog.Logger) *GuideLoader {
	if logger == nil {
		logger = observability.Discard()
	}
	cfg.Timeout = 0
	cfg.Logger = logger
	return &GuideLoader{
		fetcher: urlutil.NewResourceFetcher(cfg),
		logger:  observability.WithComponent(logger, "guide_loader"),
	}
}

// Fetch loads the guide at url. A blank url yields an empty index without
// any I/O. Network failures, non-success statuses, corrupt compressed
// streams, documents larger than sizeLimit bytes and unparsable XML all
// yield an empty index. A non-positive timeLimit or sizeLimit selects the
// defaults.
func (l *GuideLoader) Fetch(ctx context.Context, url string, timeLimit time.Duration, sizeLimit int64) *guide.Index {
	url = strings.TrimSpace(url)
	if url == "" {
		return guide.Empty()
	}

	idx, stats, err := l.Load(ctx, url, timeLimit, sizeLimit)
	if err != nil {
		l.logger.Warn("guide unavailable, continuing without program data",
			slog.String("url", httpclient.ObfuscateURL(url)),
			slog.String("error", err.Error()),
		)
		return guide.Empty()
	}

	l.logger.Info("guide loaded",
		slog.String("url", httpclient.ObfuscateURL(url)),
		slog.String("compression", string(stats.Compression)),
		slog.Int64("bytes", stats.Bytes),
		slog.Int("channels", idx.Channels()),
		slog.Int("programmes", stats.Programmes),
		slog.Int("skipped", stats.Skipped),
		slog.Duration("duration", stats.Duration),
	)
	return idx
}

// Load is Fetch without failure absorption.
func (l *GuideLoader) Load(ctx context.Context, url string, timeLimit time.Duration, sizeLimit int64) (_ *guide.Index, stats GuideStats, err error) {
	started := time.Now()
	defer observability.TimedOperationWithError(ctx, l.logger, "load_guide", &err)()

	if timeLimit <= 0 {
		timeLimit = DefaultGuideTimeout
	}
	if sizeLimit <= 0 {
		sizeLimit = DefaultGuideMaxSize
	}

	ctx, cancel := context.WithTimeout(ctx, timeLimit)
	defer cancel()

	body, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, stats, err
	}
	defer body.Close()

	data, compression, err := readDocument(body, sizeLimit)
	stats.Compression = compression
	stats.Bytes = int64(len(data))
	if err != nil {
		return nil, stats, err
	}

	builder := guide.NewBuilder()
	parser := &xmltv.Parser{
		OnProgramme: func(prog *xmltv.Programme) error {
			if prog.Title == "" {
				stats.Skipped++
				return nil
			}
			if err := builder.Add(prog.Channel, prog.Start, prog.Stop, prog.Title); err != nil {
				stats.Skipped++
				return nil
			}
			stats.Programmes++
			return nil
		},
		OnError: func(err error) {
			stats.Skipped++
			l.logger.Debug("skipping guide entry", slog.String("error", err.Error()))
		},
	}

	if err := parser.Parse(bytes.NewReader(data)); err != nil {
		return nil, stats, fmt.Errorf("parsing guide: %w", err)
	}

	stats.Duration = time.Since(started)
	return builder.Build(), stats, nil
}

// readDocument decompresses r and reads it fully, failing once more than
// limit bytes have been produced.
func readDocument(r io.Reader, limit int64) ([]byte, xmltv.Compression, error) {
	decompressed, compression, err := xmltv.Decompress(r)
	if err != nil {
		return nil, "", fmt.Errorf("decompressing guide: %w", err)
	}

	data, err := io.ReadAll(httpclient.NewLimitedReader(decompressed, limit))
	if errors.Is(err, httpclient.ErrResponseTooLarge) {
		return nil, compression, fmt.Errorf("%w: limit %d bytes", ErrGuideTooLarge, limit)
	}
	if err != nil {
		return nil, compression, fmt.Errorf("reading guide: %w", err)
	}
	return data, compression, nil
}
