// Package guide holds the program guide index and answers "what is airing now".
package guide

import (
	"slices"
	"strings"
	"time"

	"github.com/Jelikton/iptv-checker/internal/models"
)

// Entry is one scheduled programme. Stop is always after Start.
type Entry struct {
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop"`
	Title string    `json:"title"`
}

// Contains reports whether t falls within [Start, Stop).
func (e Entry) Contains(t time.Time) bool {
	return !t.Before(e.Start) && t.Before(e.Stop)
}

// Index maps guide channel IDs to schedules sorted by start time. An Index is
// immutable once built and safe for concurrent readers. A nil *Index behaves
// as an empty one.
type Index struct {
	buckets    map[string][]Entry
	programmes int
}

// Empty returns an index without any schedules.
func Empty() *Index {
	return &Index{buckets: map[string][]Entry{}}
}

// Entries returns a copy of the schedule for guideID.
func (idx *Index) Entries(guideID string) []Entry {
	if idx == nil {
		return nil
	}
	return slices.Clone(idx.buckets[guideID])
}

// Channels returns the number of guide channels with at least one entry.
func (idx *Index) Channels() int {
	if idx == nil {
		return 0
	}
	return len(idx.buckets)
}

// Programmes returns the total number of entries.
func (idx *Index) Programmes() int {
	if idx == nil {
		return 0
	}
	return idx.programmes
}

// IsEmpty reports whether the index holds no entries.
func (idx *Index) IsEmpty() bool {
	return idx.Programmes() == 0
}

// CurrentProgram returns the title of the first entry of guideID's schedule
// that contains now. It returns false for a blank guideID, an unknown
// channel or a gap in the schedule.
func CurrentProgram(guideID string, idx *Index, now time.Time) (string, bool) {
	if idx == nil || strings.TrimSpace(guideID) == "" {
		return "", false
	}
	now = now.UTC()
	for _, e := range idx.buckets[guideID] {
		if e.Contains(now) {
			return e.Title, true
		}
	}
	return "", false
}

// Builder accumulates entries for a single Index. It is not safe for
// concurrent use.
type Builder struct {
	buckets    map[string][]Entry
	programmes int
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{buckets: make(map[string][]Entry)}
}

// Add appends an entry to guideID's schedule. Times are normalised to UTC.
func (b *Builder) Add(guideID string, start, stop time.Time, title string) error {
	if !stop.After(start) {
		return models.ErrInvalidTimeRange
	}
	b.buckets[guideID] = append(b.buckets[guideID], Entry{
		Start: start.UTC(),
		Stop:  stop.UTC(),
		Title: title,
	})
	b.programmes++
	return nil
}

// Build sorts every schedule by start time and returns the finished index.
// The builder must not be used afterwards.
func (b *Builder) Build() *Index {
	for id, entries := range b.buckets {
		slices.SortStableFunc(entries, func(x, y Entry) int {
			return x.Start.Compare(y.Start)
		})
		b.buckets[id] = entries
	}
	idx := &Index{buckets: b.buckets, programmes: b.programmes}
	b.buckets = nil
	return idx
}
