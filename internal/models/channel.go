package models

import (
	"strings"

	"golang.org/x/text/cases"
)

// DefaultGroup is assigned to channels without a group-title.
const DefaultGroup = "Ungrouped"

// Channel is one playable entry of the manifest.
//
// Number is the 1-based ordinal in manifest order; within one list numbers are
// unique and dense. Status and selection lookups key on Number, never on the
// slice position. Only URL changes after creation.
type Channel struct {
	Number  int    `json:"number"`
	Name    string `json:"name"`
	TvgName string `json:"tvg_name"`
	// Logo, TvgID and URL are empty when absent.
	Logo  string `json:"logo,omitempty"`
	Group string `json:"group"`
	TvgID string `json:"id,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Validate checks the invariants of a single channel.
func (c *Channel) Validate() error {
	if c.Number < 1 {
		return ErrValidation{Field: "number", Message: ErrNumberInvalid.Error()}
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrValidation{Field: "name", Message: ErrNameRequired.Error()}
	}
	return nil
}

// Manifest is the result of parsing a playlist.
type Manifest struct {
	GuideURL string
	Channels []Channel
}

// ChannelFilter narrows a channel list by group and name search.
type ChannelFilter struct {
	// Group matches case-insensitively and exactly. Empty matches all.
	Group string
	// Search matches a case-folded substring of Name or TvgName.
	Search string
}

// Apply returns the channels matching f, preserving order.
func (f ChannelFilter) Apply(channels []Channel) []Channel {
	if f.Group == "" && f.Search == "" {
		return channels
	}

	fold := cases.Fold()
	group := fold.String(strings.TrimSpace(f.Group))
	search := fold.String(strings.TrimSpace(f.Search))

	out := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if group != "" && fold.String(ch.Group) != group {
			continue
		}
		if search != "" &&
			!strings.Contains(fold.String(ch.Name), search) &&
			!strings.Contains(fold.String(ch.TvgName), search) {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// Groups returns the distinct groups in first-seen order.
func Groups(channels []Channel) []string {
	seen := make(map[string]struct{})
	var groups []string
	for _, ch := range channels {
		if _, ok := seen[ch.Group]; ok {
			continue
		}
		seen[ch.Group] = struct{}{}
		groups = append(groups, ch.Group)
	}
	return groups
}
