package model

import "time"

// RunStatus represents the current state of a collection run.
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
)

// RunCounters tallies candidate outcomes during one collection run.
type RunCounters struct {
	Attempted      int `json:"attempted"`
	Accepted       int `json:"accepted"`
	Duplicates     int `json:"duplicates"`
	Rejected       int `json:"rejected"`
	Retries        int `json:"retries"`
	SourceFailures int `json:"source_failures"`
}

// Run is one orchestration pass. Its Delta holds exactly the leads newly
// accepted this run, in acceptance order; that is what a sync sink receives.
type Run struct {
	ID         string      `json:"id"`
	Target     int         `json:"target"`
	Status     RunStatus   `json:"status"`
	Queries    []string    `json:"queries,omitempty"`
	Delta      []Lead      `json:"delta,omitempty"`
	Counters   RunCounters `json:"counters"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
}

// DeltaKeys returns the identity keys of the run's newly accepted leads.
func (r *Run) DeltaKeys() []string {
	keys := make([]string, len(r.Delta))
	for i, l := range r.Delta {
		keys[i] = l.IdentityKey
	}
	return keys
}
