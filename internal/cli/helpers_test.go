package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/animgraph/internal/engine"
)

// headerGraph scrolls a header at half speed and fades it out.
const headerGraph = `package header

node: {
	scrollY: {id: 1, kind: "value", value: 0}
	half: {id: 2, kind: "value", value: 0.5}
	range: {id: 3, kind: "value", value: 100}
	one: {id: 4, kind: "value", value: 1}

	offset: {id: 10, kind: "op", op: "multiply", input: [1, 2]}
	progress: {id: 11, kind: "op", op: "divide", input: [1, 3]}
	fade: {id: 12, kind: "op", op: "sub", input: [4, 11]}

	onScroll: {
		id:   20
		kind: "event"
		mapping: [{path: ["y"], target: 1}]
	}

	header: {id: 30, kind: "props", props: {top: 10, opacity: 12}}
}

view: [{node: 30, view: 7}]
event: [{view: 7, event: "onScroll", node: 20}]
props: {ui: ["opacity"], native: ["top"]}
`

// writeGraph writes src as graph.cue in a fresh directory.
func writeGraph(t *testing.T, src string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "graph")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graph.cue"), []byte(src), 0o644))
	return dir
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// recordSession runs headerGraph for a few frames into db under a fixed
// session token.
func recordSession(t *testing.T, db, session string, sets ...string) {
	t.Helper()
	opts := &RunOptions{
		RootOptions:      &RootOptions{Format: "text"},
		Database:         db,
		FPS:              1000,
		Frames:           3,
		Sets:             sets,
		SessionGenerator: engine.NewFixedGenerator(session),
	}
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, runEngine(opts, writeGraph(t, headerGraph), cmd))
}
