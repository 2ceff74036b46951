package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Jelikton/iptv-checker/internal/ingestor"
	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/internal/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the channel list as an M3U playlist",
	Long: `Write the channel list, including edited URLs, as an M3U playlist.
With --reachable only channels that passed the last probe round are written.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().Bool("reachable", false, "only export channels reachable in the last probe round")
	exportCmd.Flags().String("group", "", "only export channels of this group")
	exportCmd.Flags().String("search", "", "only export channels whose name contains this text")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reachableOnly, _ := cmd.Flags().GetBool("reachable")

	a, err := newApp(ctx, cfg, logger, appOptions{withoutHistory: !reachableOnly})
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.load(ctx, false); err != nil {
		return err
	}

	var channels []models.Channel
	for _, v := range a.checker.Views(filterFromFlags(cmd)) {
		if reachableOnly && (v.Status == nil || !v.Status.Severity.IsReachable()) {
			continue
		}
		channels = append(channels, v.Channel)
	}

	var buf bytes.Buffer
	n, err := ingestor.WriteManifest(&buf, a.checker.GuideURL(), channels)
	if err != nil {
		return err
	}

	// the export may live outside the storage directory
	dest, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	sandbox, err := storage.NewSandbox(filepath.Dir(dest))
	if err != nil {
		return err
	}
	if err := sandbox.AtomicWrite(filepath.Base(dest), buf.Bytes()); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d channels to %s\n", n, dest)
	if n == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: no channels matched")
	}
	return nil
}
