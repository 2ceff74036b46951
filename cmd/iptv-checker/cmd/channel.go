package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Jelikton/iptv-checker/internal/probe"
	"github.com/Jelikton/iptv-checker/internal/storage"
)

var setURLCmd = &cobra.Command{
	Use:   "set-url <number> <url>",
	Short: "Replace a channel's stream URL and recheck it",
	Args:  cobra.ExactArgs(2),
	RunE:  runSetURL,
}

var playCmd = &cobra.Command{
	Use:   "play <number>",
	Short: "Open a channel in the media player",
	Long: `Open a channel's stream in the player configured with
"iptv-checker prefs set player_path <path>", falling back to VLC or the
system's default handler.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(setURLCmd)
	rootCmd.AddCommand(playCmd)
}

func parseNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid channel number %q", s)
	}
	return n, nil
}

func runSetURL(cmd *cobra.Command, args []string) error {
	number, err := parseNumber(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.load(ctx, false); err != nil {
		return err
	}

	v, err := a.checker.UpdateURL(ctx, number, args[1])
	if err != nil {
		return err
	}

	status := "not checked"
	if v.Status != nil {
		status = probe.Describe(*v.Status)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Channel %d (%s) updated: %s\n", v.Number, v.Name, status)
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	number, err := parseNumber(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, appOptions{withoutHistory: true})
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.load(ctx, false); err != nil {
		return err
	}
	ch, ok := a.store.Channel(number)
	if !ok {
		return fmt.Errorf("channel %d: %w", number, storage.ErrChannelNotFound)
	}

	started, err := a.launcher.Launch(ctx, ch.URL)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Playing %s with %s\n", ch.Name, started.Name)
	return nil
}
