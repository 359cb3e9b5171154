package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/animgraph/internal/ir"
	"github.com/roach88/animgraph/internal/store"
)

func setupReplayStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "replay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// recordSession runs a small animated session against a real store and
// returns its log.
func recordSession(t *testing.T) store.SessionLog {
	t.Helper()
	ctx := context.Background()
	st := setupReplayStore(t)

	e := newTestEngine(t, nil, WithRecorder(st))
	require.NoError(t, st.WriteSession(ctx, store.Session{
		ID:                e.Session(),
		DefinitionHash:    "h",
		DefinitionVersion: ir.DefinitionVersion,
		EngineVersion:     ir.EngineVersion,
	}))

	require.NoError(t, e.CreateNode(ctx, 1, ir.ClockSpec{}))
	require.NoError(t, e.CreateNode(ctx, 2, ir.ClockStartSpec{Clock: 1}))
	require.NoError(t, e.CreateNode(ctx, 3, ir.ValueSpec{Initial: ir.Number(2)}))
	require.NoError(t, e.CreateNode(ctx, 4, ir.OpSpec{Op: "multiply", Inputs: []ir.NodeID{1, 3}}))
	require.NoError(t, e.CreateNode(ctx, 5, props(ir.KeyRef{Key: "x", Node: 4}, ir.KeyRef{Key: "broken", Node: 77})))
	require.NoError(t, e.CreateNode(ctx, 6, props(ir.KeyRef{Key: "x", Node: 4})))
	require.NoError(t, e.CreateNode(ctx, 7, ir.AlwaysSpec{What: 2}))
	require.NoError(t, e.Connect(ctx, 1, 4))
	require.NoError(t, e.Connect(ctx, 4, 6))
	require.NoError(t, e.ConnectToView(ctx, 6, 1))
	require.NoError(t, e.ConnectToView(ctx, 6, 2))
	require.NoError(t, e.ConnectToView(ctx, 5, 3))
	require.NoError(t, e.MarkUpdated(ctx, 7))
	for frame := 0; frame < 5; frame++ {
		_, err := e.Tick(ctx, float64(frame*16))
		require.NoError(t, err)
	}
	require.NoError(t, e.SetValue(ctx, 3, ir.Number(-1)))
	_, err := e.Tick(ctx, 80)
	require.NoError(t, err)

	log, err := st.ReadSessionLog(ctx, e.Session())
	require.NoError(t, err)
	return log
}

func TestReplay_ReproducesRecordedStream(t *testing.T) {
	log := recordSession(t)
	require.NotEmpty(t, log.SinkUpdates)
	require.NotEmpty(t, log.Diagnostics, "the broken props node reports a diagnostic")

	res, err := Replay(context.Background(), log, WithLogger(discardLogger()))
	require.NoError(t, err)

	assert.True(t, res.OK(), "mismatches: %v", res.Mismatches)
	assert.Equal(t, len(log.Commands), res.Commands)
	assert.Equal(t, res.Recorded, res.Replayed)
	assert.Equal(t, log.Session.ID, res.SessionID)
}

func TestReplay_DetectsDivergence(t *testing.T) {
	log := recordSession(t)
	log.SinkUpdates[1].PropsHash = "tampered"

	res, err := Replay(context.Background(), log, WithLogger(discardLogger()))
	require.NoError(t, err)
	require.Len(t, res.Mismatches, 1)
	assert.Equal(t, 1, res.Mismatches[0].Index)
	assert.Contains(t, res.Mismatches[0].String(), "hash=tampered")
}

func TestReplay_DetectsMissingAndExtraUpdates(t *testing.T) {
	log := recordSession(t)
	full := len(log.SinkUpdates)

	short := log
	short.SinkUpdates = log.SinkUpdates[:full-1]
	res, err := Replay(context.Background(), short, WithLogger(discardLogger()))
	require.NoError(t, err)
	require.Len(t, res.Mismatches, 1)
	assert.Nil(t, res.Mismatches[0].Want)
	assert.Contains(t, res.Mismatches[0].String(), "unexpected update")

	truncated := log
	truncated.Commands = log.Commands[:len(log.Commands)-1]
	res, err = Replay(context.Background(), truncated, WithLogger(discardLogger()))
	require.NoError(t, err)
	require.NotEmpty(t, res.Mismatches)
	assert.Nil(t, res.Mismatches[len(res.Mismatches)-1].Got)
	assert.Contains(t, res.Mismatches[len(res.Mismatches)-1].String(), "missing update")
}

func TestReplay_RejectsUndecodableCommand(t *testing.T) {
	log := store.SessionLog{
		Session:  store.Session{ID: "s"},
		Commands: []store.CommandRecord{{Seq: 1, Op: "explode", Args: ir.Bundle{}}},
	}
	_, err := Replay(context.Background(), log, WithLogger(discardLogger()))
	require.Error(t, err)
	assert.True(t, IsCommandError(err))
	assert.Contains(t, err.Error(), "seq=1")
}
