package graph

import (
	"errors"
	"fmt"

	"github.com/roach88/animgraph/internal/ir"
)

// PassReport summarizes one RunUpdates call.
type PassReport struct {
	// LoopID is the clock value the pass evaluated at.
	LoopID int64

	// Ran is false when Tick found the graph Idle.
	Ran bool

	// Roots are the dirty roots the pass started from, in marking order.
	Roots []ir.NodeID

	// Sinks are the sink nodes updated, in update order.
	Sinks []ir.NodeID

	// SinkCalls counts host sink ApplyUpdate calls.
	SinkCalls int

	Diagnostics []Diagnostic
}

type passState struct {
	report *PassReport
}

// Tick runs exactly one pass if the graph is Pass-Pending, otherwise it
// returns a report with Ran false and leaves the clock alone.
func (g *Graph) Tick() (PassReport, error) {
	if !g.Pending() {
		return PassReport{LoopID: g.loopID}, nil
	}
	return g.RunUpdates()
}

// RunUpdates runs one evaluation pass.
//
// The dirty set is snapshotted and cleared, then each root is walked
// depth-first through its children in insertion order, with a visited set
// shared across roots. Each sink reached calls applyUpdate when first
// visited; other nodes are only traversed, their values computed lazily when
// a sink reads them. Evaluation errors become diagnostics and never abort the
// pass. The clock advances by exactly one at the end.
//
// Calling RunUpdates from inside a pass returns REENTRANT_PASS.
func (g *Graph) RunUpdates() (PassReport, error) {
	if g.inPass {
		return PassReport{}, &Error{
			Code:    ErrCodeReentrantPass,
			Message: "pass already running",
			LoopID:  g.loopID,
		}
	}
	g.inPass = true
	report := PassReport{LoopID: g.loopID, Ran: true}
	g.pass = &passState{report: &report}
	defer func() {
		g.pass = nil
		g.inPass = false
	}()

	roots := g.dirty.take()
	report.Roots = roots

	visited := make(map[ir.NodeID]struct{})
	for _, id := range roots {
		n, ok := g.nodes[id]
		if !ok {
			g.corrupt(id, fmt.Sprintf("dirty root %d is not registered", id))
			continue
		}
		g.visit(n, visited)
	}

	g.loopID++
	g.logger.Debug("pass complete",
		"loop_id", report.LoopID,
		"roots", len(roots),
		"sinks", len(report.Sinks),
		"diagnostics", len(report.Diagnostics))
	return report, nil
}

func (g *Graph) visit(n *node, visited map[ir.NodeID]struct{}) {
	if _, seen := visited[n.id]; seen {
		return
	}
	visited[n.id] = struct{}{}

	if n.spec.Kind().IsSink() {
		g.applyUpdate(n)
	}
	for _, childID := range n.children {
		child, ok := g.nodes[childID]
		if !ok {
			g.corrupt(n.id, fmt.Sprintf("child %d of node %d is not registered", childID, n.id))
			continue
		}
		g.visit(child, visited)
	}
}

// applyUpdate performs a sink's side effect using its memoized value.
func (g *Graph) applyUpdate(n *node) {
	g.pass.report.Sinks = append(g.pass.report.Sinks, n.id)

	v, err := g.value(n.id, 0)
	if err != nil {
		g.diagnose(err)
		return
	}

	if _, ok := n.spec.(ir.PropsSpec); !ok {
		return
	}
	props, ok := v.(ir.Bundle)
	if !ok {
		g.corrupt(n.id, "props node produced "+ir.TypeName(v))
		return
	}
	for _, view := range n.views {
		g.pass.report.SinkCalls++
		if err := g.sink.ApplyUpdate(view, props); err != nil {
			g.diagnose(&Error{
				Code:    ErrCodeSinkFailed,
				Message: fmt.Sprintf("host sink rejected update for view %d", view),
				NodeID:  n.id,
				Err:     err,
			})
		}
	}
}

// diagnose records err against the current pass and reports it.
func (g *Graph) diagnose(err error) {
	d := Diagnostic{LoopID: g.loopID, Code: CodeOf(err), Message: err.Error(), Err: err}
	var ge *Error
	if errors.As(err, &ge) {
		ge.LoopID = g.loopID
		d.NodeID = ge.NodeID
	}
	if g.pass != nil {
		g.pass.report.Diagnostics = append(g.pass.report.Diagnostics, d)
	}

	g.logger.Warn("evaluation diagnostic",
		"loop_id", d.LoopID,
		"node_id", d.NodeID,
		"code", string(d.Code),
		"error", err)

	if g.onDiagnostic != nil {
		g.onDiagnostic(d)
	}
}

// corrupt reports a registry invariant violation. Strict graphs panic.
func (g *Graph) corrupt(id ir.NodeID, msg string) {
	err := &Error{Code: ErrCodeRegistryCorrupt, Message: msg, NodeID: id, LoopID: g.loopID}
	if g.strict {
		panic(err)
	}
	g.diagnose(err)
}
