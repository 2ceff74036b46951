package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Jelikton/iptv-checker/internal/config"
	"github.com/Jelikton/iptv-checker/internal/database"
	"github.com/Jelikton/iptv-checker/internal/ingestor"
	"github.com/Jelikton/iptv-checker/internal/observability"
	"github.com/Jelikton/iptv-checker/internal/player"
	"github.com/Jelikton/iptv-checker/internal/prefs"
	"github.com/Jelikton/iptv-checker/internal/probe"
	"github.com/Jelikton/iptv-checker/internal/progress"
	"github.com/Jelikton/iptv-checker/internal/repository"
	"github.com/Jelikton/iptv-checker/internal/service"
	"github.com/Jelikton/iptv-checker/internal/storage"
	"github.com/Jelikton/iptv-checker/internal/version"
	"github.com/Jelikton/iptv-checker/pkg/httpclient"
)

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *storage.ChannelStore
	checker  *service.Checker
	prefs    *prefs.File
	launcher *player.Launcher
	db       *database.DB
}

type appOptions struct {
	// reporter receives per-probe progress.
	reporter progress.Reporter
	// withoutHistory skips opening the database.
	withoutHistory bool
}

// newApp wires the channel store, guide loader, prober and checker from cfg.
// A database that cannot be opened only disables the probe history.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	sandbox, err := storage.NewSandbox(cfg.Storage.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	source := ingestor.ManifestFile{Path: cfg.Playlist.ManifestPath, Logger: logger}
	store := storage.NewChannelStore(sandbox, cfg.Playlist.CacheFile, source, logger)

	httpCfg := httpclient.DefaultConfig()
	httpCfg.UserAgent = version.UserAgentOr(cfg.HTTP.UserAgent)
	httpCfg.Logger = logger

	coordinator := probe.NewCoordinator(
		probe.NewProber(httpCfg, logger),
		probe.WithLogger(logger),
		probe.WithReporter(opts.reporter),
	)

	checker := service.NewChecker(store, ingestor.NewGuideLoader(httpCfg, logger), coordinator, service.Options{
		GuideURL:     cfg.Guide.URL,
		GuideTimeout: cfg.Guide.Timeout,
		GuideMaxSize: cfg.Guide.MaxSize.Bytes(),
		Round: probe.RoundOptions{
			Timeout:        cfg.Probe.Timeout,
			MaxConcurrency: cfg.Probe.MaxConcurrency,
			RateLimit:      cfg.Probe.RateLimit,
		},
		HistoryLimit: cfg.Database.HistoryLimit,
	}).WithLogger(logger)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		checker: checker,
		prefs:   prefs.NewFile(filepath.Join(sandbox.BaseDir(), cfg.Storage.PrefsFile)),
	}

	p, err := a.prefs.Load()
	if err != nil {
		observability.WithError(logger, err).Warn("ignoring unreadable preferences",
			slog.String("path", a.prefs.Path()))
	}
	a.launcher = player.NewLauncher(p.PlayerPath, logger)

	if cfg.Database.Enabled && !opts.withoutHistory {
		dbCfg := cfg.Database
		dbCfg.DSN = resolveDSN(dbCfg, sandbox.BaseDir())

		db, err := database.Open(ctx, dbCfg, logger)
		if err != nil {
			observability.WithError(logger, err).Warn("probe history disabled",
				slog.String("driver", dbCfg.Driver))
		} else {
			a.db = db
			checker.WithHistory(repository.NewRoundRepository(db.DB))
		}
	}

	return a, nil
}

// load reads the channel list and restores the statuses of the last stored
// round.
func (a *app) load(ctx context.Context, refresh bool) (storage.LoadResult, error) {
	res, err := a.checker.Load(ctx, refresh)
	if err != nil {
		return res, err
	}
	a.logger.Debug("channel list loaded",
		slog.Int("channels", len(res.Channels)),
		slog.String("source", string(res.Source)),
	)

	if _, err := a.checker.RestoreLatest(ctx); err != nil {
		observability.WithError(a.logger, err).Warn("failed to restore last probe round")
	}
	return res, nil
}

// close waits for background work and releases the database.
func (a *app) close() {
	a.checker.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			observability.WithError(a.logger, err).Warn("failed to close database")
		}
	}
}

// resolveDSN places a relative SQLite database file under the storage base
// directory. Other drivers and in-memory databases are returned unchanged.
func resolveDSN(cfg config.DatabaseConfig, baseDir string) string {
	dsn := cfg.DSN
	if cfg.Driver != "sqlite" || dsn == "" || strings.HasPrefix(dsn, ":memory:") ||
		strings.HasPrefix(dsn, "file:") || filepath.IsAbs(dsn) {
		return dsn
	}
	return filepath.Join(baseDir, dsn)
}
