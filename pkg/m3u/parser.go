// Package m3u provides streaming parsing and writing of extended M3U playlists.
package m3u

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Header holds the attributes found on the #EXTM3U line.
type Header struct {
	// GuideURL is the url-tvg attribute, or x-tvg-url when url-tvg is absent.
	GuideURL string

	// Attrs contains every attribute of the header line, keys lowercased.
	Attrs map[string]string
}

// Entry represents a single #EXTINF metadata line together with its stream URL.
type Entry struct {
	// Duration is the raw duration token ("-1" for live streams, empty if missing).
	Duration string

	// Title is the display name after the attribute segment.
	Title string

	TvgID      string
	TvgName    string
	TvgLogo    string
	GroupTitle string

	// URL is the first non-comment line following the metadata line.
	URL string

	// Extra contains any attributes not mapped to a field above.
	Extra map[string]string
}

// Parser provides streaming M3U parsing with callback-based processing.
//
// An #EXTINF line opens an entry which is completed by the next non-empty,
// non-comment line. An entry that is followed by another #EXTINF line or by
// end of input is dropped. URL lines without preceding metadata are ignored.
type Parser struct {
	// OnHeader is called for the first #EXTM3U line only.
	OnHeader func(h Header)

	// OnEntry is called for each completed entry.
	OnEntry func(entry *Entry) error

	// OnError is called for recoverable issues such as dropped entries.
	// If nil, they are silently ignored.
	OnError func(lineNum int, err error)
}

// ErrDanglingEntry is reported through OnError when metadata has no URL.
var ErrDanglingEntry = errors.New("metadata line without stream URL")

// MaxLineSize is the longest line the parser accepts.
const MaxLineSize = 1024 * 1024

var (
	extinfRegex = regexp.MustCompile(`^#EXTINF:\s*(-?\d+(?:\.\d+)?)?\s*(.*)$`)
	attrRegex   = regexp.MustCompile(`([a-zA-Z0-9_-]+)=(?:"([^"]*)"|([^\s,"]+))`)
)

// Parse reads a playlist from r, invoking the callbacks as lines are consumed.
func (p *Parser) Parse(r io.Reader) error {
	if p.OnEntry == nil {
		return fmt.Errorf("OnEntry callback is required")
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)

	var (
		current     *Entry
		currentLine int
		sawHeader   bool
		lineNum     int
	)

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXTM3U"):
			if !sawHeader {
				sawHeader = true
				if p.OnHeader != nil {
					p.OnHeader(parseHeader(line))
				}
			}
		case strings.HasPrefix(line, "#EXTINF:"):
			if current != nil {
				p.handleError(currentLine, ErrDanglingEntry)
			}
			current = parseExtinf(line)
			currentLine = lineNum
		case strings.HasPrefix(line, "#"):
			// other directives and comments
		default:
			if current == nil {
				continue
			}
			current.URL = line
			if err := p.OnEntry(current); err != nil {
				return fmt.Errorf("callback error at line %d: %w", lineNum, err)
			}
			current = nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning M3U: %w", err)
	}
	if current != nil {
		p.handleError(currentLine, ErrDanglingEntry)
	}

	return nil
}

func parseHeader(line string) Header {
	attrs := parseAttrs(strings.TrimPrefix(line, "#EXTM3U"))
	h := Header{Attrs: attrs, GuideURL: attrs["url-tvg"]}
	if h.GuideURL == "" {
		h.GuideURL = attrs["x-tvg-url"]
	}
	return h
}

func parseExtinf(line string) *Entry {
	entry := &Entry{Extra: make(map[string]string)}

	matches := extinfRegex.FindStringSubmatch(line)
	if matches == nil {
		return entry
	}
	entry.Duration = matches[1]
	rest := matches[2]

	if idx := splitIndex(rest); idx >= 0 {
		entry.Title = strings.TrimSpace(rest[idx+1:])
		rest = rest[:idx]
	}

	for key, value := range parseAttrs(rest) {
		switch key {
		case "tvg-id":
			entry.TvgID = value
		case "tvg-name":
			entry.TvgName = value
		case "tvg-logo":
			entry.TvgLogo = value
		case "group-title":
			entry.GroupTitle = value
		default:
			entry.Extra[key] = value
		}
	}

	return entry
}

func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, match := range attrRegex.FindAllStringSubmatch(s, -1) {
		key := strings.ToLower(match[1])
		if _, seen := attrs[key]; seen {
			continue
		}
		value := match[2]
		if value == "" {
			value = match[3]
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs
}

// splitIndex returns the first comma outside a quoted attribute value.
// Unbalanced quotes fall back to the first comma.
func splitIndex(s string) int {
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				return i
			}
		}
	}
	return strings.IndexByte(s, ',')
}

func (p *Parser) handleError(lineNum int, err error) {
	if p.OnError != nil {
		p.OnError(lineNum, err)
	}
}
