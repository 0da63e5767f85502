package pipeline

import (
	"fmt"
	"time"

	"sumika/internal/diff"
)

// Outcome is one stage execution's result.
type Outcome struct {
	Stage    string
	Category string
	OK       bool
	Err      error
	Duration time.Duration
}

// RunReport aggregates everything a run produced, for reporting, the ledger,
// and downstream consumers.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
	Counts     map[string]diff.Counts
	HasChanges bool
	Notify     bool
}

// FailedStages returns "category/stage" labels for every failed outcome.
func (r *RunReport) FailedStages() []string {
	var failed []string
	for _, outcome := range r.Outcomes {
		if !outcome.OK {
			failed = append(failed, fmt.Sprintf("%s/%s", outcome.Category, outcome.Stage))
		}
	}
	return failed
}

// StaleStages returns the stages that failed for a category, whose
// enrichment fields therefore carry the previous run's values or none.
func (r *RunReport) StaleStages(category string) []string {
	var stale []string
	for _, outcome := range r.Outcomes {
		if outcome.Category == category && !outcome.OK {
			stale = append(stale, outcome.Stage)
		}
	}
	return stale
}
