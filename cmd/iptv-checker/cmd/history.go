package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
)

// timeNow is replaced in tests.
var timeNow = time.Now

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent probe rounds",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 10, "number of rounds to show")
	historyCmd.Flags().StringP("output", "o", "table", "output format (table, json)")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if !cfg.Database.Enabled {
		return errors.New("probe history is disabled (database.enabled is false)")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()
	if a.db == nil {
		return errors.New("probe history database is unavailable")
	}

	limit, _ := cmd.Flags().GetInt("limit")
	rounds, err := a.checker.Rounds(ctx, limit)
	if err != nil {
		return err
	}

	if output, _ := cmd.Flags().GetString("output"); output == "json" {
		return renderJSON(cmd.OutOrStdout(), rounds)
	}
	return renderRounds(cmd.OutOrStdout(), rounds, timeNow())
}
