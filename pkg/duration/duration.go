// Package duration parses and formats durations with day and week units.
//
// Parse accepts everything time.ParseDuration does plus "d" (24h) and
// "w" (7d) components, e.g. "1w2d", "36h" or "1d12h30m".
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Day is 24 hours.
	Day = 24 * time.Hour
	// Week is 7 days.
	Week = 7 * Day
)

var extendedUnit = regexp.MustCompile(`(?i)(\d+)\s*(weeks?|w|days?|d)`)

// Parse parses a duration string.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimSpace(strings.TrimPrefix(s, "-"))

	var hours int64
	rest := extendedUnit.ReplaceAllStringFunc(s, func(match string) string {
		m := extendedUnit.FindStringSubmatch(match)
		n, _ := strconv.ParseInt(m[1], 10, 64)
		if strings.HasPrefix(strings.ToLower(m[2]), "w") {
			hours += n * 7 * 24
		} else {
			hours += n * 24
		}
		return ""
	})
	rest = strings.Join(strings.Fields(rest), "")

	var d time.Duration
	if rest != "" {
		var err error
		if d, err = time.ParseDuration(rest); err != nil {
			return 0, fmt.Errorf("duration: %w", err)
		}
	}
	d += time.Duration(hours) * time.Hour

	if negative {
		d = -d
	}
	return d, nil
}

// Format renders d using the largest units first and omits zero components,
// e.g. 36h becomes "1d12h". Sub-second durations keep time.Duration's form.
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	if d < time.Second {
		return sign + d.String()
	}

	var b strings.Builder
	b.WriteString(sign)
	for _, u := range []struct {
		size   time.Duration
		suffix string
	}{
		{Week, "w"},
		{Day, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	} {
		if n := d / u.size; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, u.suffix)
			d -= n * u.size
		}
	}
	if d >= time.Millisecond {
		fmt.Fprintf(&b, "%dms", d/time.Millisecond)
	}
	return b.String()
}
