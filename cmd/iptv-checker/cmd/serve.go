package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	internalhttp "github.com/Jelikton/iptv-checker/internal/http"
	"github.com/Jelikton/iptv-checker/internal/http/handlers"
	"github.com/Jelikton/iptv-checker/internal/scheduler"
	"github.com/Jelikton/iptv-checker/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status API server",
	Long: `Start the HTTP status API.

The server provides:
- channel list with now-playing title and probe status
- starting, cancelling and watching probe rounds
- URL updates and player launching
- probe round history and a health check
- OpenAPI documentation at /docs

When probe.schedule holds a cron expression (for example "0 */6 * * *")
probe rounds are also started on that schedule.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "host to bind to (default from config)")
	serveCmd.Flags().Int("port", 0, "port to listen on (default from config)")
	serveCmd.Flags().Bool("probe", false, "start a probe round on startup")
	serveCmd.Flags().String("schedule", "", "cron expression for scheduled probe rounds (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("schedule") {
		cfg.Probe.Schedule, _ = cmd.Flags().GetString("schedule")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.load(ctx, false)
	if err != nil {
		return err
	}
	logger.Info("channels loaded",
		slog.Int("count", len(res.Channels)),
		slog.String("source", string(res.Source)),
	)

	// requests see the guide once it is published
	a.checker.FetchGuide(ctx)

	if probeOnStart, _ := cmd.Flags().GetBool("probe"); probeOnStart {
		if _, err := a.checker.StartRound(context.WithoutCancel(ctx)); err != nil {
			return err
		}
	}

	if cfg.Probe.Schedule != "" {
		sched, err := scheduler.New(cfg.Probe.Schedule, a.checker)
		if err != nil {
			return err
		}
		sched.WithLogger(logger).WithConfig(scheduler.Config{RefreshGuide: true})
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)
	api := server.API()

	health := handlers.NewHealthHandler(version.Version)
	if a.db != nil {
		health.WithDB(a.db)
	}
	health.Register(api)
	handlers.NewChannelHandler(a.checker).WithLauncher(a.launcher).Register(api)
	handlers.NewProbeHandler(a.checker).Register(api)
	handlers.NewGuideHandler(a.checker).Register(api)
	handlers.NewRoundHandler(a.checker).Register(api)

	err = server.ListenAndServe(ctx)
	a.checker.CancelRound()
	return err
}
