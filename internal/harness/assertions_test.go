package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/animgraph/internal/graph"
	"github.com/roach88/animgraph/internal/ir"
	"github.com/roach88/animgraph/internal/sink"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Type: EventCommand, Seq: 1, Op: "tick", Args: ir.Bundle{"frame_time_ms": ir.Number(0)}},
		{Type: EventSinkUpdate, Seq: 2, LoopID: 0, View: 5, Props: ir.Bundle{"left": ir.Number(0), "top": ir.Number(3)}},
		{Type: EventCommand, Seq: 3, Op: "tick", Args: ir.Bundle{"frame_time_ms": ir.Number(16)}},
		{Type: EventSinkUpdate, Seq: 4, LoopID: 1, View: 5, Props: ir.Bundle{"left": ir.Number(10)}},
		{Type: EventSinkUpdate, Seq: 5, LoopID: 1, View: 6, Props: ir.Bundle{"left": ir.Number(-1)}},
		{Type: EventDiagnostic, Seq: 6, LoopID: 1, NodeID: 8, Code: "MISSING_NODE", Message: "node 8 references unregistered node 9"},
	}
}

func TestAssertSinkUpdate_Found(t *testing.T) {
	err := assertSinkUpdate(sampleTrace(), Assertion{
		Type:  AssertSinkUpdate,
		View:  int64p(5),
		Props: map[string]any{"left": 10},
	})
	assert.NoError(t, err)
}

func TestAssertSinkUpdate_SubsetMatch(t *testing.T) {
	err := assertSinkUpdate(sampleTrace(), Assertion{
		Type:  AssertSinkUpdate,
		View:  int64p(5),
		Props: map[string]any{"top": 3},
	})
	assert.NoError(t, err, "extra keys in the update are ignored")
}

func TestAssertSinkUpdate_WrongLoop(t *testing.T) {
	err := assertSinkUpdate(sampleTrace(), Assertion{
		Type:  AssertSinkUpdate,
		View:  int64p(5),
		Loop:  int64p(0),
		Props: map[string]any{"left": 10},
	})
	require.Error(t, err)

	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertSinkUpdate, aerr.Type)
	assert.Contains(t, aerr.Expected, "in loop 0")
	assert.Equal(t, "not found in trace", aerr.Actual)
}

func TestAssertSinkUpdate_WrongView(t *testing.T) {
	err := assertSinkUpdate(sampleTrace(), Assertion{
		Type:  AssertSinkUpdate,
		View:  int64p(6),
		Props: map[string]any{"left": 10},
	})
	assert.Error(t, err)
}

func TestAssertSinkSequence(t *testing.T) {
	tests := []struct {
		name   string
		view   int64
		key    string
		values []any
		ok     bool
	}{
		{"matching sequence", 5, "left", []any{0, 10}, true},
		{"updates without the key are skipped", 5, "top", []any{3}, true},
		{"wrong order", 5, "left", []any{10, 0}, false},
		{"too short", 5, "left", []any{0}, false},
		{"no updates expected and none found", 7, "left", nil, true},
		{"no updates expected but some found", 6, "left", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertSinkSequence(sampleTrace(), Assertion{
				Type:   AssertSinkSequence,
				View:   int64p(tt.view),
				Key:    tt.key,
				Values: tt.values,
			})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertSinkCount(t *testing.T) {
	assert.NoError(t, assertSinkCount(sampleTrace(), Assertion{Count: intp(3)}))
	assert.NoError(t, assertSinkCount(sampleTrace(), Assertion{Count: intp(2), View: int64p(5)}))
	assert.NoError(t, assertSinkCount(sampleTrace(), Assertion{Count: intp(0), View: int64p(99)}))

	err := assertSinkCount(sampleTrace(), Assertion{Count: intp(1), View: int64p(5)})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "1 sink updates to view 5", aerr.Expected)
	assert.Equal(t, "2 sink updates", aerr.Actual)
}

func TestAssertChannelUpdate(t *testing.T) {
	channels := map[sink.Channel][]sink.Update{
		sink.ChannelNative: {{Seq: 1, View: 5, Props: ir.Bundle{"top": ir.Number(3)}}},
	}

	assert.NoError(t, assertChannelUpdate(channels, Assertion{
		Channel: "native", View: int64p(5), Props: map[string]any{"top": 3},
	}))

	err := assertChannelUpdate(channels, Assertion{
		Channel: "ui", View: int64p(5), Props: map[string]any{"top": 3},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "received []")
}

func TestAssertFinalValue(t *testing.T) {
	values := map[ir.NodeID]ir.Value{
		1: ir.Number(0.5),
		2: ir.Bundle{"left": ir.Number(10)},
		3: ir.Null{},
	}

	assert.NoError(t, assertFinalValue(values, Assertion{Node: 1, Value: 0.5}))
	assert.NoError(t, assertFinalValue(values, Assertion{Node: 2, Value: map[string]any{"left": 10}}))
	assert.NoError(t, assertFinalValue(values, Assertion{Node: 3, Value: nil}))

	err := assertFinalValue(values, Assertion{Node: 1, Value: 1})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "node 1 = 1", aerr.Expected)
	assert.Equal(t, "node 1 = 0.5", aerr.Actual)

	err = assertFinalValue(values, Assertion{Node: 4, Value: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node has no value")
}

func TestAssertDiagnostic(t *testing.T) {
	assert.NoError(t, assertDiagnostic(sampleTrace(), Assertion{Code: "MISSING_NODE"}))
	assert.NoError(t, assertDiagnostic(sampleTrace(), Assertion{Code: "MISSING_NODE", Node: 8}))
	assert.Error(t, assertDiagnostic(sampleTrace(), Assertion{Code: "MISSING_NODE", Node: 9}))
	assert.Error(t, assertDiagnostic(sampleTrace(), Assertion{Code: "EVAL_CYCLE"}))
}

func TestAssertNoDiagnostics(t *testing.T) {
	err := assertNoDiagnostics(sampleTrace())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING_NODE (node 8)")

	assert.NoError(t, assertNoDiagnostics(sampleTrace()[:5]))
}

func TestAssertPassCount(t *testing.T) {
	result := NewResult()
	result.Passes = []graph.PassReport{{LoopID: 0, Ran: true}, {LoopID: 1}, {LoopID: 1, Ran: true}}

	assert.NoError(t, assertPassCount(result, Assertion{Count: intp(2)}))

	err := assertPassCount(result, Assertion{Count: intp(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 passes over 3 ticks")
}

func TestMatchProps_SubsetSemantics(t *testing.T) {
	actual := ir.Bundle{
		"top":   ir.Number(3),
		"label": ir.String("hi"),
		"style": ir.Bundle{"color": ir.String("red")},
	}

	tests := []struct {
		name     string
		expected map[string]any
		want     bool
	}{
		{"empty expectation matches", nil, true},
		{"single key", map[string]any{"top": 3}, true},
		{"integer and float agree", map[string]any{"top": 3.0}, true},
		{"nested bundle", map[string]any{"style": map[string]any{"color": "red"}}, true},
		{"missing key", map[string]any{"left": 3}, false},
		{"wrong value", map[string]any{"label": "bye"}, false},
		{"wrong type", map[string]any{"top": "3"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchProps(actual, tt.expected))
		})
	}
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertSinkUpdate, View: int64p(5), Props: map[string]any{"left": 0}},
		{Type: AssertSinkCount, Count: intp(3)},
		{Type: AssertDiagnostic, Code: "MISSING_NODE"},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertSinkCount, Count: intp(3)},
		{Type: AssertNoDiagnostics},
		{Type: AssertSinkCount, Count: intp(9)},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "no_diagnostics")
	assert.Contains(t, errs[1], "sink_count")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "trace_contains"}})
	require.Len(t, errs, 1)
	assert.Equal(t, `assertion[0]: unknown assertion type "trace_contains"`, errs[0])
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertSinkCount,
		Expected: "2 sink updates to all views",
		Actual:   "1 sink updates",
		Trace: []TraceEvent{
			{Type: EventCommand, Seq: 1, Op: "mark_updated", Args: ir.Bundle{"id": ir.Number(1)}},
			{Type: EventSinkUpdate, Seq: 2, LoopID: 0, View: 5, Props: ir.Bundle{"left": ir.Number(0)}},
			{Type: EventDiagnostic, Seq: 3, LoopID: 0, NodeID: 2, Code: "EVAL_CYCLE", Message: "cycle"},
		},
	}

	want := "Assertion failed: sink_count\n" +
		"  Expected: 2 sink updates to all views\n" +
		"  Actual: 1 sink updates\n" +
		"\nFull trace:\n" +
		"  [1] mark_updated {\"id\":1}\n" +
		"  [2] update view=5 loop=0 {\"left\":0}\n" +
		"  [3] diagnostic EVAL_CYCLE node=2 loop=0: cycle\n"
	assert.Equal(t, want, err.Error())
}

func TestAssertionError_WithoutTrace(t *testing.T) {
	err := &AssertionError{Type: AssertPassCount, Expected: "1 passes", Actual: "0 passes over 0 ticks"}
	assert.NotContains(t, err.Error(), "Full trace")
}
