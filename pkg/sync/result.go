package sync

import (
	"fmt"
	"strings"
	"time"
)

// Failure attributes an error to the operation that caused it.
type Failure struct {
	Op  Operation
	Err error
}

// Conflict records a matched pair whose differing fields were left for user
// review under the manual strategy.
type Conflict struct {
	Account1ID string
	Account2ID string
	Fields     []string
}

// Result reports one cycle's outcome.
type Result struct {
	CycleID  string
	Started  time.Time
	Finished time.Time

	DryRun bool
	Full   bool

	// Matching statistics
	Matched   int // Pairs linked this cycle (ledger + scored + arbiter)
	Uncertain int // Pairs escalated to the arbiter

	// Apply statistics
	Created    int
	Updated    int
	Deleted    int
	Skipped    int
	Conflicted int

	Failures  []Failure
	Conflicts []Conflict

	// Plan is retained for dry runs so the caller can report what would
	// have been applied.
	Plan *Plan
}

// Success reports whether the cycle as a whole succeeded: every operation
// either applied or was a reported manual conflict.
func (r *Result) Success() bool {
	return len(r.Failures) == 0
}

// HasChanges reports whether the cycle applied (or, in a dry run, planned)
// any change.
func (r *Result) HasChanges() bool {
	if r.DryRun && r.Plan != nil {
		return !r.Plan.IsEmpty()
	}
	return r.Created+r.Updated+r.Deleted > 0
}

// Summary returns a human-readable one-line summary.
func (r *Result) Summary() string {
	var parts []string
	if r.DryRun {
		parts = append(parts, "(dry run)")
	}
	if r.Full {
		parts = append(parts, "(full)")
	}

	summary := fmt.Sprintf("%d created, %d updated, %d deleted, %d skipped, %d conflicted",
		r.Created, r.Updated, r.Deleted, r.Skipped, r.Conflicted)
	if len(r.Failures) > 0 {
		summary += fmt.Sprintf(", %d failed", len(r.Failures))
	}
	if len(parts) > 0 {
		summary += " " + strings.Join(parts, " ")
	}
	return summary
}

// Stats accumulates results across cycles for long-running schedulers.
type Stats struct {
	Cycles     int
	Created    int
	Updated    int
	Deleted    int
	Skipped    int
	Conflicted int
	Failures   int
	LastCycle  time.Time
}

// Add folds one cycle's result into the running totals. Dry runs count as
// cycles but contribute no mutation counts.
func (s *Stats) Add(r *Result) {
	s.Cycles++
	s.LastCycle = r.Finished
	if r.DryRun {
		return
	}
	s.Created += r.Created
	s.Updated += r.Updated
	s.Deleted += r.Deleted
	s.Skipped += r.Skipped
	s.Conflicted += r.Conflicted
	s.Failures += len(r.Failures)
}
