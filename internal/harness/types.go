package harness

import "fmt"

// TraceEvent is one captured store change, with the generated record
// id replaced by the scenario's symbolic name.
type TraceEvent struct {
	// Step is the zero-based index of the step that produced this
	// event. A cascade delete produces several events for one step.
	Step int `json:"step"`

	// Op is the mutation kind: insert, update, delete, attach, detach.
	Op string `json:"op"`

	// Record is the symbolic name from the scenario.
	Record string `json:"record"`

	// Kind is the record's kind.
	Kind string `json:"kind"`

	// Field names the updated field, for update events.
	Field string `json:"field,omitempty"`

	// Seq is the store's logical clock value for this mutation.
	Seq int64 `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step behaved as scripted
	// and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every store change in notification order.
	Trace []TraceEvent `json:"trace"`

	// Snapshots holds the watched query's results after each step, as
	// symbolic names. Empty when the scenario has no query.
	Snapshots [][]string `json:"snapshots,omitempty"`

	// Final is the watched query's result after the last step.
	Final []string `json:"final,omitempty"`

	// Errors contains assertion and step failures. Empty if Pass.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result to accumulate into.
func NewResult() *Result {
	return &Result{
		Pass:  true,
		Trace: []TraceEvent{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}
