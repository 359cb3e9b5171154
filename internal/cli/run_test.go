package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/animgraph/internal/engine"
	"github.com/roach88/animgraph/internal/ir"
	"github.com/roach88/animgraph/internal/store"
)

func readLog(t *testing.T, db, session string) store.SessionLog {
	t.Helper()
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	log, err := st.ReadSessionLog(context.Background(), session)
	require.NoError(t, err)
	return log
}

func TestRunRecordsSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "anim.db")
	recordSession(t, db, "cli-run-1")

	log := readLog(t, db, "cli-run-1")
	assert.True(t, log.Session.Closed)
	assert.Equal(t, ir.DefinitionVersion, log.Session.DefinitionVersion)
	assert.NotEmpty(t, log.Session.DefinitionHash)
	assert.Equal(t, log.LastSeq, log.Session.LastSeq)

	var ticks int
	for _, c := range log.Commands {
		if c.Op == "tick" {
			ticks++
		}
	}
	assert.Equal(t, 3, ticks, "idle ticks are recorded too")

	require.Len(t, log.SinkUpdates, 1)
	u := log.SinkUpdates[0]
	assert.Equal(t, ir.ViewTag(7), u.View)
	assert.Equal(t, int64(0), u.LoopID)
	assert.True(t, ir.Equal(ir.Number(0), u.Props["top"]))
	assert.True(t, ir.Equal(ir.Number(1), u.Props["opacity"]))
	assert.Empty(t, log.Diagnostics)
}

func TestRunAppliesSets(t *testing.T) {
	db := filepath.Join(t.TempDir(), "anim.db")
	recordSession(t, db, "cli-run-set", "1=50")

	log := readLog(t, db, "cli-run-set")
	require.Len(t, log.SinkUpdates, 1, "sets land before the first pass")
	props := log.SinkUpdates[0].Props
	assert.True(t, ir.Equal(ir.Number(25), props["top"]))
	assert.True(t, ir.Equal(ir.Number(0.5), props["opacity"]))
}

func TestRunSummaryJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "anim.db")
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	opts := &RunOptions{
		RootOptions:      &RootOptions{Format: "json"},
		Database:         db,
		FPS:              1000,
		Frames:           4,
		SessionGenerator: engine.NewFixedGenerator("cli-run-json"),
	}
	require.NoError(t, runEngine(opts, writeGraph(t, headerGraph), cmd))

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "cli-run-json", resp.Data.Session)
	assert.Equal(t, 4, resp.Data.Frames)
	assert.Equal(t, 1, resp.Data.Passes)
	assert.Equal(t, 1, resp.Data.SinkUpdates)
	assert.Equal(t, 0, resp.Data.Diagnostics)
	assert.Positive(t, resp.Data.LastSeq)
	assert.Equal(t, map[string]int{"ui": 1, "native": 1, "js": 0}, resp.Data.Channels)
}

func TestRunTextSummary(t *testing.T) {
	db := filepath.Join(t.TempDir(), "anim.db")
	out, err := execute(t, "run", "--db", db, "--fps", "1000", "--frames", "2", writeGraph(t, headerGraph))
	require.NoError(t, err)
	assert.Contains(t, out, "Session: ")
	assert.Contains(t, out, "  Passes: 1")
	assert.Contains(t, out, "  Sink updates: 1 (ui 1, native 1, js 0)")
}

func TestRunInvalidGraph(t *testing.T) {
	db := filepath.Join(t.TempDir(), "anim.db")
	dir := writeGraph(t, `package bad

node: a: {id: 1, kind: "spring"}
`)

	_, err := execute(t, "run", "--db", db, "--frames", "1", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to compile definition")
}

func TestRunInvalidFlags(t *testing.T) {
	db := filepath.Join(t.TempDir(), "anim.db")
	dir := writeGraph(t, headerGraph)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad set", []string{"--set", "x=1"}, "node id"},
		{"set without value", []string{"--set", "1"}, "expected id=value"},
		{"bad set json", []string{"--set", "1={"}, "value"},
		{"zero fps", []string{"--fps", "0"}, "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"run", "--db", db, "--frames", "1"}, tt.args...)
			_, err := execute(t, append(args, dir)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseSet(t *testing.T) {
	sv, err := parseSet("12=0.25")
	require.NoError(t, err)
	assert.Equal(t, ir.NodeID(12), sv.id)
	assert.True(t, ir.Equal(ir.Number(0.25), sv.value))

	sv, err = parseSet(` 3={"a":[1,"b"]}`)
	require.NoError(t, err)
	assert.Equal(t, ir.NodeID(3), sv.id)
	assert.True(t, ir.Equal(ir.Bundle{"a": ir.Array{ir.Number(1), ir.String("b")}}, sv.value))

	sv, err = parseSet("4=null")
	require.NoError(t, err)
	assert.True(t, ir.Equal(ir.Null{}, sv.value))
}
