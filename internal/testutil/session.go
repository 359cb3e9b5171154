package testutil

// FixedSessionGenerator generates the same session token every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with the same token produces byte-identical traces.
//
// Unlike engine.FixedGenerator, which hands out its tokens once each, this
// generator never runs out, so one generator can serve every engine a test
// creates.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	token string
}

// NewFixedSessionGenerator creates a new fixed session token generator.
//
// The token is typically set in the scenario YAML:
//
//	session: "test-session-0001"
//
// If token is empty, Generate() returns "test-session-default".
func NewFixedSessionGenerator(token string) *FixedSessionGenerator {
	if token == "" {
		token = "test-session-default"
	}
	return &FixedSessionGenerator{token: token}
}

// Generate returns the fixed session token.
//
// Implements engine.SessionGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.token
}
