// Package bytesize parses and formats human-readable byte sizes.
//
// Units are case-insensitive and binary: "75MB", "75M" and "75MiB" all mean
// 75 * 1024 * 1024 bytes. A bare number is a count of bytes.
package bytesize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Size is a number of bytes.
type Size int64

const (
	B  Size = 1
	KB Size = 1 << 10
	MB Size = 1 << 20
	GB Size = 1 << 30
	TB Size = 1 << 40
)

var units = []struct {
	size  Size
	names []string
}{
	{TB, []string{"tb", "t", "tib"}},
	{GB, []string{"gb", "g", "gib"}},
	{MB, []string{"mb", "m", "mib"}},
	{KB, []string{"kb", "k", "kib"}},
	{B, []string{"b", "byte", "bytes", ""}},
}

var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-z]*)\s*$`)

// Parse converts a string such as "1.5 GB" into a Size.
func Parse(s string) (Size, error) {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("bytesize: invalid format %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number %q: %w", m[1], err)
	}

	unit := strings.ToLower(m[2])
	for _, u := range units {
		for _, name := range u.names {
			if name == unit {
				return Size(value * float64(u.size)), nil
			}
		}
	}
	return 0, fmt.Errorf("bytesize: unknown unit %q", m[2])
}

// Format renders s with the largest unit that keeps the value at or above one.
func Format(s Size) string {
	if s < 0 {
		return "-" + Format(-s)
	}
	for _, u := range units {
		if s >= u.size && u.size > B {
			v := strconv.FormatFloat(float64(s)/float64(u.size), 'f', 2, 64)
			v = strings.TrimRight(strings.TrimRight(v, "0"), ".")
			return v + strings.ToUpper(u.names[0])
		}
	}
	return strconv.FormatInt(int64(s), 10) + "B"
}

// String implements fmt.Stringer.
func (s Size) String() string {
	return Format(s)
}
