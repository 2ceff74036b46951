package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/internal/probe"
	"github.com/Jelikton/iptv-checker/internal/service"
	"github.com/Jelikton/iptv-checker/pkg/duration"
	"github.com/Jelikton/iptv-checker/pkg/format"
)

const maxCellWidth = 40

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle      = cellStyle.Foreground(lipgloss.Color("#3fb950"))
	failStyle    = cellStyle.Foreground(lipgloss.Color("#f85149"))
	warnStyle    = cellStyle.Foreground(lipgloss.Color("#d29922"))
	mutedStyle   = cellStyle.Foreground(lipgloss.Color("#8b949e"))
	summaryStyle = lipgloss.NewStyle().Bold(true)
)

const statusColumn = 4

func severityStyle(s models.Severity) lipgloss.Style {
	switch s {
	case models.SeverityOK:
		return okStyle
	case models.SeverityTimeout, models.SeverityMethodNotAllowed:
		return warnStyle
	case models.SeverityNonHTTPScheme, models.SeverityUnknown:
		return mutedStyle
	default:
		return failStyle
	}
}

// renderChannels writes views as a table.
func renderChannels(w io.Writer, views []service.ChannelView) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "No channels.")
		return err
	}

	rows := make([][]string, len(views))
	for i, v := range views {
		status := "-"
		if v.Status != nil {
			status = probe.Describe(*v.Status)
		}
		rows[i] = []string{
			strconv.Itoa(v.Number),
			truncate(v.Name, maxCellWidth),
			truncate(v.Group, maxCellWidth),
			truncate(v.NowPlaying, maxCellWidth),
			status,
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("#", "Channel", "Group", "Now Playing", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == statusColumn && views[row].Status != nil:
				return severityStyle(views[row].Status.Severity)
			case col == statusColumn:
				return mutedStyle
			default:
				return cellStyle
			}
		})

	_, err := fmt.Fprintln(w, t.String())
	return err
}

// renderSummary writes the outcome of a round.
func renderSummary(w io.Writer, s service.RoundStatus) error {
	probed := s.Completed
	var reachable float64
	if probed > 0 {
		reachable = float64(s.Reachable) / float64(probed)
	}

	line := fmt.Sprintf("Checked %s of %s channels in %s: %s reachable (%s)",
		format.Number(probed), format.Number(s.Total), duration.Format(s.Duration.Round(time.Millisecond)),
		format.Number(s.Reachable), format.Percentage(reachable))
	if s.Cancelled {
		line += fmt.Sprintf(", cancelled with %s skipped", format.Number(s.Skipped))
	}
	if _, err := fmt.Fprintln(w, summaryStyle.Render(line)); err != nil {
		return err
	}

	var parts []string
	for _, sev := range models.Severities {
		if n := s.Counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %s", strings.ReplaceAll(string(sev), "_", " "), format.Number(n)))
		}
	}
	if len(parts) > 0 {
		_, err := fmt.Fprintln(w, "  "+strings.Join(parts, ", "))
		return err
	}
	return nil
}

// renderJSON writes v as indented JSON.
func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderRounds writes stored rounds as a table.
func renderRounds(w io.Writer, rounds []*models.ProbeRound, now time.Time) error {
	if len(rounds) == 0 {
		_, err := fmt.Fprintln(w, "No probe rounds recorded.")
		return err
	}

	rows := make([][]string, len(rounds))
	for i, r := range rounds {
		state := "finished"
		if r.Cancelled {
			state = "cancelled"
		}
		rows[i] = []string{
			r.ID.String(),
			format.RelativeTime(r.StartedAt, now),
			duration.Format(r.Duration().Round(time.Millisecond)),
			format.Number(r.Completed) + "/" + format.Number(r.Total),
			format.Number(r.Reachable),
			state,
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Round", "Started", "Duration", "Probed", "Reachable", "State").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	_, err := fmt.Fprintln(w, t.String())
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// failedOnly keeps the views whose last result is not reachable.
func failedOnly(views []service.ChannelView) []service.ChannelView {
	out := make([]service.ChannelView, 0, len(views))
	for _, v := range views {
		if v.Status != nil && !v.Status.Severity.IsReachable() {
			out = append(out, v)
		}
	}
	return out
}
