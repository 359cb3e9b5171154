package graph

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/animgraph/internal/ir"
)

type sinkCall struct {
	View  ir.ViewTag
	Props ir.Bundle
}

// recordingSink captures every host sink call.
type recordingSink struct {
	calls   []sinkCall
	fail    map[ir.ViewTag]error
	onApply func(view ir.ViewTag)
}

func (s *recordingSink) ApplyUpdate(view ir.ViewTag, props ir.Bundle) error {
	s.calls = append(s.calls, sinkCall{View: view, Props: props})
	if s.onApply != nil {
		s.onApply(view)
	}
	return s.fail[view]
}

func (s *recordingSink) reset() {
	s.calls = nil
}

func newTestGraph(t *testing.T, opts ...Option) (*Graph, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithStrict(true),
	}
	return New(sink, append(base, opts...)...), sink
}

func mustCreate(t *testing.T, g *Graph, id ir.NodeID, spec ir.Spec) {
	t.Helper()
	require.NoError(t, g.CreateNode(id, spec))
}

func mustConnect(t *testing.T, g *Graph, parent, child ir.NodeID) {
	t.Helper()
	require.NoError(t, g.Connect(parent, child))
}

func mustRun(t *testing.T, g *Graph) PassReport {
	t.Helper()
	report, err := g.RunUpdates()
	require.NoError(t, err)
	return report
}

func mustValue(t *testing.T, g *Graph, id ir.NodeID) ir.Value {
	t.Helper()
	v, err := g.Value(id)
	require.NoError(t, err)
	return v
}

func props(pairs ...ir.KeyRef) ir.PropsSpec {
	return ir.PropsSpec{Props: pairs}
}

func kr(key string, id ir.NodeID) ir.KeyRef {
	return ir.KeyRef{Key: key, Node: id}
}
