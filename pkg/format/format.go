// Package format renders sizes, counts and times for terminal output.
package format

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Bytes formats a byte count, e.g. Bytes(1536) == "1.5 KB".
func Bytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < 4; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), []string{"KB", "MB", "GB", "TB", "PB"}[exp])
}

// Number formats n with thousand separators, e.g. "1,234,567".
func Number(n int) string {
	return printer.Sprintf("%d", n)
}

// Percentage formats a 0..1 fraction as a percentage with one decimal.
func Percentage(fraction float64) string {
	return fmt.Sprintf("%.1f%%", fraction*100)
}

// RelativeTime describes t relative to now, e.g. "5 minutes ago".
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		return "in the future"
	}

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	default:
		return plural(int(d.Hours()/24), "day")
	}
}
