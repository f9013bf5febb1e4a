package harness

import (
	"github.com/roach88/splitscript/internal/engine"
	"github.com/roach88/splitscript/internal/ir"
)

// TraceEvent is one runtime record as seen by assertions and golden files.
// The runtime id is dropped; it is fixed per scenario.
type TraceEvent struct {
	Seq     int64             `json:"seq"`
	Kind    engine.RecordKind `json:"kind"`
	From    string            `json:"from,omitempty"`
	To      string            `json:"to,omitempty"`
	Process string            `json:"process,omitempty"`
	PID     int               `json:"pid,omitempty"`
	Version string            `json:"version,omitempty"`
	Action  string            `json:"action,omitempty"`
	Method  string            `json:"method,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}

func traceEventFrom(r engine.Record) TraceEvent {
	return TraceEvent{
		Seq:     r.Seq,
		Kind:    r.Kind,
		From:    r.From,
		To:      r.To,
		Process: r.Process,
		PID:     r.PID,
		Version: r.Version,
		Action:  r.Action,
		Method:  r.Method,
		Detail:  r.Detail,
	}
}

// FinalState captures the runtime and timer after the last step, before
// shutdown.
type FinalState struct {
	State       string    `json:"state"`
	Phase       string    `json:"phase"`
	SplitIndex  int       `json:"split_index"`
	Version     string    `json:"version"`
	RefreshRate float64   `json:"refresh_rate"`
	AttachedPID int       `json:"attached_pid"` // 0 when detached
	Vars        ir.Object `json:"vars"`
}

// field returns the final_state value for key, in the types YAML decodes to.
func (f FinalState) field(key string) any {
	switch key {
	case "state":
		return f.State
	case "phase":
		return f.Phase
	case "split_index":
		return f.SplitIndex
	case "version":
		return f.Version
	case "refresh_rate":
		return f.RefreshRate
	case "attached_pid":
		return f.AttachedPID
	case "vars":
		return f.Vars
	}
	return nil
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every runtime record in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// TickErrors are errors returned by Tick. They do not fail the
	// scenario on their own; method failures also appear in Trace.
	TickErrors []string `json:"tick_errors,omitempty"`

	// State is the final runtime and timer state.
	State FinalState `json:"state"`
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
