package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jelikton/iptv-checker/pkg/format"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List channels without probing",
	Long: `List the channels with what they are airing now. Statuses come from the
most recent stored probe round, if any.`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("group", "", "only show channels of this group")
	listCmd.Flags().String("search", "", "only show channels whose name contains this text")
	listCmd.Flags().Bool("failed", false, "only show channels that failed the last probe")
	listCmd.Flags().Bool("refresh", false, "rebuild the channel cache from the playlist")
	listCmd.Flags().Bool("no-guide", false, "skip fetching the program guide")
	listCmd.Flags().StringP("output", "o", "table", "output format (table, json)")
}

func runList(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unknown output format %q", output)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	refresh, _ := cmd.Flags().GetBool("refresh")
	if _, err := a.load(ctx, refresh); err != nil {
		return err
	}
	latest, err := a.checker.Rounds(ctx, 1)
	if err != nil {
		return err
	}

	if noGuide, _ := cmd.Flags().GetBool("no-guide"); !noGuide {
		<-a.checker.FetchGuide(ctx)
	}

	views := a.checker.Views(filterFromFlags(cmd))
	if failed, _ := cmd.Flags().GetBool("failed"); failed {
		views = failedOnly(views)
	}

	out := cmd.OutOrStdout()
	if output == "json" {
		return renderJSON(out, views)
	}
	if err := renderChannels(out, views); err != nil {
		return err
	}
	if len(latest) > 0 {
		fmt.Fprintf(out, "Statuses from probe round %s (%s)\n",
			latest[0].ID, format.RelativeTime(latest[0].StartedAt, timeNow()))
	}
	return nil
}
