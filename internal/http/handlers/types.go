// Package handlers provides the status API handlers.
package handlers

import (
	"time"

	"github.com/Jelikton/iptv-checker/internal/guide"
	"github.com/Jelikton/iptv-checker/internal/models"
	"github.com/Jelikton/iptv-checker/internal/service"
)

// StatusResponse is the probe result of one channel.
type StatusResponse struct {
	Severity   string `json:"severity" doc:"Result class, e.g. ok, not_found, timeout"`
	Label      string `json:"label" doc:"Human readable result"`
	StatusCode int    `json:"status_code,omitempty" doc:"Final HTTP status, absent when no response was received"`
}

// ChannelResponse is a channel with its now-playing title and probe status.
type ChannelResponse struct {
	Number     int             `json:"number" doc:"1-based position in the manifest"`
	Name       string          `json:"name"`
	TvgName    string          `json:"tvg_name"`
	TvgID      string          `json:"tvg_id,omitempty"`
	Logo       string          `json:"logo,omitempty"`
	Group      string          `json:"group"`
	URL        string          `json:"url"`
	NowPlaying string          `json:"now_playing,omitempty"`
	Status     *StatusResponse `json:"status,omitempty" doc:"Absent until the channel has been probed"`
}

// ChannelFromView converts a service view to a response.
func ChannelFromView(v service.ChannelView) ChannelResponse {
	resp := ChannelResponse{
		Number:     v.Number,
		Name:       v.Name,
		TvgName:    v.TvgName,
		TvgID:      v.TvgID,
		Logo:       v.Logo,
		Group:      v.Group,
		URL:        v.URL,
		NowPlaying: v.NowPlaying,
	}
	if v.Status != nil {
		resp.Status = &StatusResponse{
			Severity:   string(v.Status.Severity),
			Label:      v.Status.Label,
			StatusCode: v.Status.StatusCode,
		}
	}
	return resp
}

// ProbeStatusResponse is the progress of the active or most recent round.
type ProbeStatusResponse struct {
	ID        string         `json:"id"`
	Active    bool           `json:"active"`
	Cancelled bool           `json:"cancelled"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Skipped   int            `json:"skipped"`
	Progress  float64        `json:"progress" doc:"Fraction of channels probed or skipped, 0 to 1"`
	Reachable int            `json:"reachable"`
	Counts    map[string]int `json:"counts" doc:"Number of results per severity"`
	StartedAt time.Time      `json:"started_at"`
	Duration  string         `json:"duration"`
}

// ProbeStatusFromRound converts a round status to a response.
func ProbeStatusFromRound(s service.RoundStatus) ProbeStatusResponse {
	counts := make(map[string]int, len(s.Counts))
	for sev, n := range s.Counts {
		counts[string(sev)] = n
	}
	return ProbeStatusResponse{
		ID:        s.ID,
		Active:    s.Active,
		Cancelled: s.Cancelled,
		Total:     s.Total,
		Completed: s.Completed,
		Skipped:   s.Skipped,
		Progress:  s.Progress,
		Reachable: s.Reachable,
		Counts:    counts,
		StartedAt: s.StartedAt,
		Duration:  s.Duration.Round(time.Millisecond).String(),
	}
}

// RoundResponse is a stored probe round.
type RoundResponse struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Skipped    int       `json:"skipped"`
	Reachable  int       `json:"reachable"`
	Cancelled  bool      `json:"cancelled"`
}

// RoundFromModel converts a stored round to a response.
func RoundFromModel(r *models.ProbeRound) RoundResponse {
	return RoundResponse{
		ID:         r.ID.String(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Duration:   r.Duration().Round(time.Millisecond).String(),
		Total:      r.Total,
		Completed:  r.Completed,
		Skipped:    r.Skipped,
		Reachable:  r.Reachable,
		Cancelled:  r.Cancelled,
	}
}

// OutcomeResponse is the stored result of one channel in a round.
type OutcomeResponse struct {
	Number     int    `json:"number"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	Severity   string `json:"severity"`
	Label      string `json:"label"`
	StatusCode int    `json:"status_code,omitempty"`
}

// RoundDetailResponse is a stored round with its outcomes.
type RoundDetailResponse struct {
	RoundResponse
	Outcomes []OutcomeResponse `json:"outcomes"`
}

// RoundDetailFromModel converts a stored round and its outcomes.
func RoundDetailFromModel(r *models.ProbeRound) RoundDetailResponse {
	resp := RoundDetailResponse{
		RoundResponse: RoundFromModel(r),
		Outcomes:      make([]OutcomeResponse, len(r.Outcomes)),
	}
	for i, o := range r.Outcomes {
		resp.Outcomes[i] = OutcomeResponse{
			Number:     o.Number,
			Name:       o.Name,
			URL:        o.URL,
			Severity:   string(o.Severity),
			Label:      o.Label,
			StatusCode: o.StatusCode,
		}
	}
	return resp
}

// ScheduleEntryResponse is one programme of a channel schedule.
type ScheduleEntryResponse struct {
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop"`
	Title string    `json:"title"`
}

// ScheduleFromEntries converts guide entries to responses.
func ScheduleFromEntries(entries []guide.Entry) []ScheduleEntryResponse {
	out := make([]ScheduleEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = ScheduleEntryResponse{Start: e.Start, Stop: e.Stop, Title: e.Title}
	}
	return out
}

// GuideResponse describes the loaded program guide.
type GuideResponse struct {
	URL        string    `json:"url" doc:"Guide URL with credentials obfuscated"`
	Loading    bool      `json:"loading"`
	Loaded     bool      `json:"loaded"`
	Channels   int       `json:"channels"`
	Programmes int       `json:"programmes"`
	LoadedAt   time.Time `json:"loaded_at,omitzero"`
}
