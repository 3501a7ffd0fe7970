package types

import "time"

// Outcome classifies what happened to a single resource during a run.
type Outcome string

const (
	OutcomeDeleted Outcome = "deleted"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// DeletionResult records the fate of one resource.
type DeletionResult struct {
	Resource   Resource      `json:"resource"`
	Outcome    Outcome       `json:"outcome"`
	Reason     string        `json:"reason,omitempty"`
	Attempts   int           `json:"attempts,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Failed reports whether the deletion attempt failed.
func (r DeletionResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}
