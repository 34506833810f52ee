package harness

import (
	"github.com/roach88/larder/internal/livequery"
)

// Step actions recorded in the trace.
const (
	ActionOpen   = "open"
	ActionSync   = "sync"
	ActionSort   = "sort"
	ActionSearch = "search"
)

// TraceEvent records the observable effect of one scenario step.
type TraceEvent struct {
	Step    int               `json:"step"`
	Action  string            `json:"action"`
	Seq     int64             `json:"seq"`
	Outcome *SyncTrace        `json:"outcome,omitempty"`
	Error   *ErrorTrace       `json:"error,omitempty"`
	Loading bool              `json:"loading"`
	Diff    livequery.RowDiff `json:"diff"`
	Rows    []string          `json:"rows"`
}

// SyncTrace is a successful sync cycle.
type SyncTrace struct {
	CommitID string `json:"commit_id"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Dropped  int    `json:"dropped"`
}

// ErrorTrace is a failed sync cycle.
type ErrorTrace struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains one event per step, preceded by the open event.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
