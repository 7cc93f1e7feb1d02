package storage

import "time"

// Run describes one completed tracker refresh.
// Runs are appended in the order they finish.
type Run struct {
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	NewRecords      int       `json:"new_records"`
	WatermarkBefore int       `json:"watermark_before"`
	WatermarkAfter  int       `json:"watermark_after"`
	Insight         string    `json:"insight"`
	Failed          bool      `json:"failed,omitempty"`
	Model           string    `json:"model,omitempty"`
}

// Journal abstracts persistence of refresh runs.
// LoadRuns should return runs in the order they were appended.
// Implementations must be safe for concurrent use.
type Journal interface {
	AppendRun(run Run) error
	LoadRuns() ([]Run, error)
}

// KV is a string-valued key-value store scoped to one tracker instance.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Close() error
}
