package m3u

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// Writer provides streaming M3U playlist writing in the grammar Parser reads.
type Writer struct {
	w             io.Writer
	guideURL      string
	headerWritten bool
}

// NewWriter creates a new M3U writer. A non-empty guideURL is emitted as the
// url-tvg header attribute.
func NewWriter(w io.Writer, guideURL string) *Writer {
	return &Writer{w: w, guideURL: guideURL}
}

// WriteHeader writes the #EXTM3U line. WriteEntry calls it on first use.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	header := "#EXTM3U"
	if w.guideURL != "" {
		header += fmt.Sprintf(` url-tvg="%s"`, sanitizeAttr(w.guideURL))
	}
	if _, err := fmt.Fprintln(w.w, header); err != nil {
		return fmt.Errorf("writing M3U header: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteEntry writes the metadata line and URL line of one entry.
func (w *Writer) WriteEntry(entry *Entry) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}

	var attrs []string
	add := func(key, value string) {
		if value != "" {
			attrs = append(attrs, fmt.Sprintf(`%s="%s"`, key, sanitizeAttr(value)))
		}
	}
	add("tvg-id", entry.TvgID)
	add("tvg-name", entry.TvgName)
	add("tvg-logo", entry.TvgLogo)
	add("group-title", entry.GroupTitle)

	extraKeys := make([]string, 0, len(entry.Extra))
	for k := range entry.Extra {
		extraKeys = append(extraKeys, k)
	}
	slices.Sort(extraKeys)
	for _, k := range extraKeys {
		add(k, entry.Extra[k])
	}

	duration := entry.Duration
	if duration == "" {
		duration = "-1"
	}

	line := "#EXTINF:" + duration
	if len(attrs) > 0 {
		line += " " + strings.Join(attrs, " ")
	}
	line += "," + entry.Title

	if _, err := fmt.Fprintln(w.w, line); err != nil {
		return fmt.Errorf("writing EXTINF: %w", err)
	}
	if _, err := fmt.Fprintln(w.w, entry.URL); err != nil {
		return fmt.Errorf("writing URL: %w", err)
	}
	return nil
}

// sanitizeAttr replaces characters that cannot appear inside a quoted value.
func sanitizeAttr(s string) string {
	return strings.NewReplacer(`"`, "'", "\n", " ", "\r", " ").Replace(s)
}
