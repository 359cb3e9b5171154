package ir

// Version constants for the definition schema and engine.
const (
	// DefinitionVersion is the graph definition schema version.
	DefinitionVersion = "1"

	// EngineVersion is the animgraph engine version.
	EngineVersion = "0.1.0"
)
