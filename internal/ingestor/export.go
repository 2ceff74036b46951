package ingestor

import (
	"fmt"
	"io"

	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/pkg/m3u"
)

// WriteManifest writes channels as an M3U playlist that ParseManifest reads
// back to the same channels. Channels without a URL are skipped.
func WriteManifest(w io.Writer, guideURL string, channels []models.Channel) (int, error) {
	mw := m3u.NewWriter(w, guideURL)
	if err := mw.WriteHeader(); err != nil {
		return 0, err
	}

	written := 0
	for _, ch := range channels {
		if ch.URL == "" {
			continue
		}
		entry := &m3u.Entry{
			Duration: "-1",
			Title:    ch.Name,
			TvgID:    ch.TvgID,
			TvgLogo:  ch.Logo,
			URL:      ch.URL,
		}
		if ch.TvgName != ch.Name {
			entry.TvgName = ch.TvgName
		}
		if ch.Group != models.DefaultGroup {
			entry.GroupTitle = ch.Group
		}
		if err := mw.WriteEntry(entry); err != nil {
			return written, fmt.Errorf("writing channel %d: %w", ch.Number, err)
		}
		written++
	}
	return written, nil
}
