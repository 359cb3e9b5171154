package store

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/animgraph/internal/ir"
)

func posInf() float64 { return math.Inf(1) }

func TestReadSession_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadSession(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = s.LatestSession(context.Background())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReadSession_RoundTripsDefinition(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := createTestSession(t, s, "sess-1")

	got, err := s.ReadSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, want.Definition, got.Definition)
	assert.Equal(t, "testdata/basic", got.Source)
	assert.False(t, got.Closed)
}

func TestListSessions_WriteOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	createTestSession(t, s, "b")
	createTestSession(t, s, "a")
	createTestSession(t, s, "c")

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	ids := make([]string, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.ID
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)

	latest, err := s.LatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ID)
}

func TestReadCommands_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1")
	createTestSession(t, s, "sess-2")

	for _, seq := range []int64{3, 1, 2} {
		require.NoError(t, s.WriteCommand(ctx, CommandRecord{
			SessionID: "sess-1", Seq: seq, Op: "mark_updated", Args: ir.Bundle{"id": ir.Number(float64(seq))},
		}))
	}
	require.NoError(t, s.WriteCommand(ctx, CommandRecord{SessionID: "sess-2", Seq: 1, Op: "tick"}))

	cmds, err := s.ReadCommands(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, cmds, 3)
	for i, c := range cmds {
		assert.Equal(t, int64(i+1), c.Seq)
		assert.Equal(t, ir.Bundle{"id": ir.Number(float64(i + 1))}, c.Args)
	}
}

func TestReadSinkUpdatesForView(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1")

	writes := []SinkUpdateRecord{
		{SessionID: "sess-1", Seq: 1, LoopID: 0, View: 10, Props: ir.Bundle{"x": ir.Number(1)}},
		{SessionID: "sess-1", Seq: 2, LoopID: 0, View: 20, Props: ir.Bundle{"x": ir.Number(2)}},
		{SessionID: "sess-1", Seq: 3, LoopID: 1, View: 10, Props: ir.Bundle{"x": ir.Number(3)}},
	}
	for _, w := range writes {
		require.NoError(t, s.WriteSinkUpdate(ctx, w))
	}

	updates, err := s.ReadSinkUpdatesForView(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, int64(1), updates[0].Seq)
	assert.Equal(t, int64(3), updates[1].Seq)
}

func TestReadSessionLog(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1")

	require.NoError(t, s.WriteCommand(ctx, CommandRecord{SessionID: "sess-1", Seq: 1, Op: "mark_updated", Args: ir.Bundle{"id": ir.Number(1)}}))
	require.NoError(t, s.WriteCommand(ctx, CommandRecord{SessionID: "sess-1", Seq: 2, Op: "tick", Args: ir.Bundle{"frame_time_ms": ir.Number(0)}}))
	require.NoError(t, s.WriteSinkUpdate(ctx, SinkUpdateRecord{SessionID: "sess-1", Seq: 3, View: 5, Props: ir.Bundle{"a": ir.Number(1)}}))
	require.NoError(t, s.WriteDiagnostic(ctx, DiagnosticRecord{SessionID: "sess-1", Seq: 4, NodeID: 2, Code: "EVAL_CYCLE", Message: "cycle"}))

	log, err := s.ReadSessionLog(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, log.Commands, 2)
	assert.Len(t, log.SinkUpdates, 1)
	assert.Len(t, log.Diagnostics, 1)
	assert.Equal(t, int64(4), log.LastSeq, "open session: last seq comes from the streams")

	_, err = s.ReadSessionLog(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
