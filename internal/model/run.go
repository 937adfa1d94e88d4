package model

import "time"

// RunStatus represents the current state of a harvest run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a recorded harvest over a list of companies.
type Run struct {
	ID        string      `json:"id"`
	Companies []string    `json:"companies"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the outcome counts of a finished run.
type RunSummary struct {
	Records     map[Category]int `json:"records"`
	VisitedURLs int              `json:"visited_urls"`
	OutputFiles []string         `json:"output_files,omitempty"`
	DurationMs  int64            `json:"duration_ms"`
	Error       string           `json:"error,omitempty"`
}
