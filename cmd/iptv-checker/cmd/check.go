package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/internal/progress"
	"github.com/Jelikton/iptv-checker/internal/service"
	"github.com/Jelikton/iptv-checker/pkg/format"
)

// errNoChannels is returned when neither the cache nor the manifest yield
// any channel.
var errNoChannels = errors.New("no channels loaded")

const progressInterval = 200 * time.Millisecond

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe every channel and print the results",
	Long: `Load the channel list, fetch the program guide and probe every stream URL.

Press Ctrl-C to cancel: probes already running finish, the remaining
channels are skipped and the partial results are printed.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().String("group", "", "only show channels of this group")
	checkCmd.Flags().String("search", "", "only show channels whose name contains this text")
	checkCmd.Flags().Bool("failed", false, "only show channels that are not reachable")
	checkCmd.Flags().StringP("output", "o", "table", "output format (table, json)")
	checkCmd.Flags().Bool("refresh", false, "rebuild the channel cache from the playlist")
	checkCmd.Flags().Int("concurrency", 0, "maximum probes in flight (default from config)")
	checkCmd.Flags().Duration("timeout", 0, "per-probe timeout (default from config)")
}

// checkReport is the JSON form of a check.
type checkReport struct {
	Round    service.RoundStatus   `json:"round"`
	Guide    service.GuideStatus   `json:"guide"`
	Channels []service.ChannelView `json:"channels"`
}

func runCheck(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unknown output format %q", output)
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Probe.MaxConcurrency, _ = cmd.Flags().GetInt("concurrency")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Probe.Timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reporter progress.Reporter = progress.NilReporter{}
	if output == "table" {
		reporter = newProgressLine(cmd.ErrOrStderr())
	}

	a, err := newApp(ctx, cfg, logger, appOptions{reporter: reporter})
	if err != nil {
		return err
	}
	defer a.close()

	refresh, _ := cmd.Flags().GetBool("refresh")
	res, err := a.load(ctx, refresh)
	if err != nil {
		return err
	}
	if len(res.Channels) == 0 {
		return fmt.Errorf("%w from %s", errNoChannels, cfg.Playlist.ManifestPath)
	}

	guideDone := a.checker.FetchGuide(ctx)

	round, err := a.checker.StartRound(ctx)
	if err != nil {
		return err
	}
	<-round.Done()
	<-guideDone
	if p, ok := reporter.(*progressLine); ok {
		p.finish()
	}

	views := a.checker.Views(filterFromFlags(cmd))
	if failed, _ := cmd.Flags().GetBool("failed"); failed {
		views = failedOnly(views)
	}
	status, _ := a.checker.RoundStatus()

	out := cmd.OutOrStdout()
	if output == "json" {
		return renderJSON(out, checkReport{Round: status, Guide: a.checker.GuideStatus(), Channels: views})
	}
	if err := renderChannels(out, views); err != nil {
		return err
	}
	return renderSummary(out, status)
}

func filterFromFlags(cmd *cobra.Command) models.ChannelFilter {
	group, _ := cmd.Flags().GetString("group")
	search, _ := cmd.Flags().GetString("search")
	return models.ChannelFilter{Group: group, Search: search}
}

// progressLine redraws a single "Probing n/total" status line.
type progressLine struct {
	w        io.Writer
	mu       sync.Mutex
	last     string
	reporter *progress.Throttled
}

func newProgressLine(w io.Writer) *progressLine {
	p := &progressLine{w: w}
	p.reporter = progress.NewThrottled(progress.Func(p.draw), progressInterval)
	return p
}

func (p *progressLine) ReportProgress(float64, string) {}

func (p *progressLine) ReportItemProgress(current, total int, itemName string) {
	p.reporter.ReportItemProgress(current, total, itemName)
}

func (p *progressLine) draw(current, total int, itemName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var fraction float64
	if total > 0 {
		fraction = float64(current) / float64(total)
	}
	line := fmt.Sprintf("Probing %s/%s (%s) %s",
		format.Number(current), format.Number(total), format.Percentage(fraction), truncate(itemName, maxCellWidth))
	pad := ""
	if n := len(p.last) - len(line); n > 0 {
		pad = fmt.Sprintf("%*s", n, "")
	}
	fmt.Fprint(p.w, "\r"+line+pad)
	p.last = line
}

func (p *progressLine) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != "" {
		fmt.Fprintln(p.w)
	}
}

var _ progress.Reporter = (*progressLine)(nil)
