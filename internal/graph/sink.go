package graph

import "github.com/roach88/animgraph/internal/ir"

// HostSink is the only outbound side effect of the graph. Props nodes call
// ApplyUpdate once per connected view when a pass reaches them.
type HostSink interface {
	ApplyUpdate(view ir.ViewTag, props ir.Bundle) error
}

// HostSinkFunc adapts a function to HostSink.
type HostSinkFunc func(view ir.ViewTag, props ir.Bundle) error

// ApplyUpdate calls f.
func (f HostSinkFunc) ApplyUpdate(view ir.ViewTag, props ir.Bundle) error {
	return f(view, props)
}

// Discard is a HostSink that drops every update.
var Discard HostSink = HostSinkFunc(func(ir.ViewTag, ir.Bundle) error { return nil })

// Diagnostic is a developer-visible error surfaced by a pass. Diagnostics
// never abort the pass that produced them.
type Diagnostic struct {
	LoopID  int64
	NodeID  ir.NodeID
	Code    ErrorCode
	Message string
	Err     error
}
