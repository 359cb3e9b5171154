package store

import "github.com/roach88/animgraph/internal/ir"

// Session is one engine run.
type Session struct {
	ID                string
	DefinitionHash    string
	DefinitionVersion string
	EngineVersion     string

	// Source names where the definition was loaded from, for display only.
	Source string

	// Definition is the compiled graph definition (ir.GraphDef.ToBundle), so
	// a session can be replayed without its CUE source.
	Definition ir.Bundle

	LastSeq int64
	Closed  bool
}

// CommandRecord is one external command applied by the engine.
type CommandRecord struct {
	SessionID string
	Seq       int64
	Op        string
	Args      ir.Bundle
}

// SinkUpdateRecord is one host sink call.
type SinkUpdateRecord struct {
	SessionID string
	Seq       int64
	LoopID    int64
	View      ir.ViewTag
	Props     ir.Bundle

	// PropsHash is ir.PayloadHash(Props). Computed on write when empty.
	PropsHash string
}

// DiagnosticRecord is one diagnostic surfaced by a pass.
type DiagnosticRecord struct {
	SessionID string
	Seq       int64
	LoopID    int64
	NodeID    ir.NodeID
	Code      string
	Message   string
}
