package models

import "time"

// ProbeRound is the persisted summary of one finished probing round.
type ProbeRound struct {
	BaseModel
	StartedAt  time.Time `gorm:"not null;index" json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Skipped    int       `json:"skipped"`
	Reachable  int       `json:"reachable"`
	Cancelled  bool      `json:"cancelled"`

	Outcomes []ProbeOutcome `gorm:"foreignKey:RoundID;constraint:OnDelete:CASCADE" json:"outcomes,omitempty"`
}

// TableName returns the table name for GORM.
func (ProbeRound) TableName() string {
	return "probe_rounds"
}

// Duration returns how long the round ran.
func (r *ProbeRound) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ProbeOutcome is one channel's result within a persisted round.
type ProbeOutcome struct {
	BaseModel
	RoundID    ULID     `gorm:"type:varchar(26);not null;index" json:"round_id"`
	Number     int      `gorm:"not null" json:"number"`
	Name       string   `gorm:"size:512" json:"name"`
	URL        string   `gorm:"size:2048" json:"url"`
	Severity   Severity `gorm:"size:32;index" json:"severity"`
	Label      string   `gorm:"size:64" json:"label"`
	StatusCode int      `json:"status_code,omitempty"`
}

// TableName returns the table name for GORM.
func (ProbeOutcome) TableName() string {
	return "probe_outcomes"
}

// Result converts the stored outcome back into a ProbeResult.
func (o *ProbeOutcome) Result() ProbeResult {
	return ProbeResult{Label: o.Label, StatusCode: o.StatusCode, Severity: o.Severity}
}
