package harness

import (
	"sort"

	"github.com/roach88/animgraph/internal/engine"
	"github.com/roach88/animgraph/internal/graph"
	"github.com/roach88/animgraph/internal/ir"
	"github.com/roach88/animgraph/internal/sink"
	"github.com/roach88/animgraph/internal/store"
)

// Trace event types.
const (
	EventCommand    = "command"
	EventSinkUpdate = "sink_update"
	EventDiagnostic = "diagnostic"
)

// TraceEvent is one recorded entry of a session: a command, a sink update
// or a diagnostic. Events share one seq space.
type TraceEvent struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`

	// command
	Op   string    `json:"op,omitempty"`
	Args ir.Bundle `json:"args,omitempty"`

	// sink_update and diagnostic
	LoopID int64 `json:"loop_id"`

	// sink_update
	View  ir.ViewTag `json:"view,omitempty"`
	Props ir.Bundle  `json:"props,omitempty"`

	// diagnostic
	NodeID  ir.NodeID `json:"node_id,omitempty"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace is the session log as read back from the store, in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step, assertion and replay failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Session is the session token the run was recorded under.
	Session string `json:"session"`

	// Passes holds the report of every tick, including ticks that found the
	// graph idle.
	Passes []graph.PassReport `json:"-"`

	// Values holds the final values read for final_value assertions.
	Values map[ir.NodeID]ir.Value `json:"-"`

	// Channels holds what each host channel received after partitioning.
	Channels map[sink.Channel][]sink.Update `json:"-"`

	// Replay is the outcome of re-executing the recorded commands.
	Replay *engine.ReplayResult `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Values:   make(map[ir.NodeID]ir.Value),
		Channels: make(map[sink.Channel][]sink.Update),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// SinkUpdates returns the sink_update events of the trace.
func (r *Result) SinkUpdates() []TraceEvent {
	return r.eventsOf(EventSinkUpdate)
}

// Diagnostics returns the diagnostic events of the trace.
func (r *Result) Diagnostics() []TraceEvent {
	return r.eventsOf(EventDiagnostic)
}

func (r *Result) eventsOf(typ string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// BuildTrace merges the streams of a session log into one seq-ordered trace.
func BuildTrace(log store.SessionLog) []TraceEvent {
	trace := make([]TraceEvent, 0, len(log.Commands)+len(log.SinkUpdates)+len(log.Diagnostics))
	for _, c := range log.Commands {
		trace = append(trace, TraceEvent{Type: EventCommand, Seq: c.Seq, Op: c.Op, Args: c.Args})
	}
	for _, u := range log.SinkUpdates {
		trace = append(trace, TraceEvent{Type: EventSinkUpdate, Seq: u.Seq, LoopID: u.LoopID, View: u.View, Props: u.Props})
	}
	for _, d := range log.Diagnostics {
		trace = append(trace, TraceEvent{
			Type:    EventDiagnostic,
			Seq:     d.Seq,
			LoopID:  d.LoopID,
			NodeID:  d.NodeID,
			Code:    d.Code,
			Message: d.Message,
		})
	}
	sort.SliceStable(trace, func(i, j int) bool { return trace[i].Seq < trace[j].Seq })
	return trace
}
