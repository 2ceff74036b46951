package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/internal/player"
	"github.com/Jelikton/iptv-checker/internal/probe"
	"github.com/Jelikton/iptv-checker/internal/service"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Browse, play and fix channels interactively",
	RunE:  runMenu,
}

func init() {
	rootCmd.AddCommand(menuCmd)
	menuCmd.Flags().Bool("no-guide", false, "skip fetching the program guide")
}

func runMenu(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.load(ctx, false)
	if err != nil {
		return err
	}
	if len(res.Channels) == 0 {
		return fmt.Errorf("%w from %s", errNoChannels, cfg.Playlist.ManifestPath)
	}
	if noGuide, _ := cmd.Flags().GetBool("no-guide"); !noGuide {
		a.checker.FetchGuide(ctx)
	}

	m := newMenu(a.checker, a.launcher, cmd.InOrStdin(), cmd.OutOrStdout())
	return m.run(ctx)
}

// launcher opens a stream URL in a player.
type launcher interface {
	Launch(ctx context.Context, url string) (player.Command, error)
}

// menu is the interactive loop over one loaded channel list.
type menu struct {
	checker  *service.Checker
	launcher launcher
	in       *bufio.Scanner
	out      io.Writer
	filter   models.ChannelFilter
}

func newMenu(checker *service.Checker, l launcher, in io.Reader, out io.Writer) *menu {
	return &menu{checker: checker, launcher: l, in: bufio.NewScanner(in), out: out}
}

const menuText = `
1) List channels
2) Filter by group
3) Search channels
4) Play channel
5) Update channel URL
6) Probe all channels
q) Quit`

// run reads choices until quit or end of input.
func (m *menu) run(ctx context.Context) error {
	for {
		fmt.Fprintln(m.out, menuText)
		if desc := m.describeFilter(); desc != "" {
			fmt.Fprintln(m.out, desc)
		}

		choice, ok := m.prompt("Choice")
		if !ok {
			return nil
		}

		var err error
		switch strings.ToLower(choice) {
		case "1":
			err = renderChannels(m.out, m.checker.Views(m.filter))
		case "2":
			m.chooseGroup()
		case "3":
			if text, ok := m.prompt("Search (empty to clear)"); ok {
				m.filter.Search = text
			}
		case "4":
			err = m.play(ctx)
		case "5":
			err = m.updateURL(ctx)
		case "6":
			err = m.probeAll(ctx)
		case "q", "quit", "exit", "7":
			return nil
		case "":
		default:
			fmt.Fprintf(m.out, "Unknown choice %q\n", choice)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(m.out, "Error: %v\n", err)
		}
	}
}

// prompt prints label and reads one trimmed line. It returns false at end
// of input.
func (m *menu) prompt(label string) (string, bool) {
	fmt.Fprintf(m.out, "%s: ", label)
	if !m.in.Scan() {
		fmt.Fprintln(m.out)
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

func (m *menu) describeFilter() string {
	var parts []string
	if m.filter.Group != "" {
		parts = append(parts, "group "+strconv.Quote(m.filter.Group))
	}
	if m.filter.Search != "" {
		parts = append(parts, "search "+strconv.Quote(m.filter.Search))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Filter: " + strings.Join(parts, ", ")
}

func (m *menu) chooseGroup() {
	groups := m.checker.Groups()
	for i, g := range groups {
		fmt.Fprintf(m.out, "%3d) %s\n", i+1, g)
	}

	answer, ok := m.prompt("Group number or name (empty to clear)")
	if !ok {
		return
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(groups) {
		answer = groups[n-1]
	}
	m.filter.Group = answer
}

func (m *menu) readNumber() (int, error) {
	answer, ok := m.prompt("Channel number")
	if !ok {
		return 0, io.EOF
	}
	return parseNumber(answer)
}

func (m *menu) play(ctx context.Context) error {
	number, err := m.readNumber()
	if err != nil {
		return err
	}
	v, ok := m.checker.View(number)
	if !ok {
		return fmt.Errorf("no channel %d", number)
	}

	started, err := m.launcher.Launch(ctx, v.URL)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Playing %s with %s\n", v.Name, started.Name)
	return nil
}

func (m *menu) updateURL(ctx context.Context) error {
	number, err := m.readNumber()
	if err != nil {
		return err
	}
	v, ok := m.checker.View(number)
	if !ok {
		return fmt.Errorf("no channel %d", number)
	}
	fmt.Fprintf(m.out, "Current URL: %s\n", v.URL)

	url, ok := m.prompt("New URL")
	if !ok {
		return io.EOF
	}
	v, err = m.checker.UpdateURL(ctx, number, url)
	if err != nil {
		return err
	}

	status := "not checked, a probe round is running"
	if v.Status != nil {
		status = probe.Describe(*v.Status)
	}
	fmt.Fprintf(m.out, "Updated %s: %s\n", v.Name, status)
	return nil
}

func (m *menu) probeAll(ctx context.Context) error {
	round, err := m.checker.StartRound(ctx)
	if errors.Is(err, probe.ErrRoundInProgress) {
		fmt.Fprintln(m.out, "A probe round is already running.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Probing %d channels...\n", round.Total())
	if err := round.Wait(ctx); err != nil {
		return err
	}

	status, _ := m.checker.RoundStatus()
	return renderSummary(m.out, status)
}
