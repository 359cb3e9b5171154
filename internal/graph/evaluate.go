package graph

import (
	"fmt"
	"strings"

	"github.com/roach88/animgraph/internal/ir"
)

// value returns the memoized value of id, evaluating it when the cache is
// stale. A failed evaluation leaves the cache invalid so the next read
// retries. Inside a pass only values computed by a pass count as fresh.
func (g *Graph) value(id ir.NodeID, depth int) (ir.Value, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, newMissingNode(id)
	}
	m := n.slot(g.callID)
	inPass := g.pass != nil
	if m.loopID == g.loopID && (m.inPass || !inPass) {
		return m.value, nil
	}
	if n.evaluating {
		return nil, &Error{Code: ErrCodeEvalCycle, Message: "node read itself during evaluation", NodeID: id}
	}
	if depth >= g.maxDepth {
		return nil, &Error{
			Code:    ErrCodeDepthExceeded,
			Message: fmt.Sprintf("evaluation depth exceeded %d", g.maxDepth),
			NodeID:  id,
		}
	}

	n.evaluating = true
	n.evalCount++
	v, err := g.evaluate(n, depth)
	n.evaluating = false
	if err != nil {
		return nil, err
	}

	*m = memo{value: v, loopID: g.loopID, inPass: inPass}
	return v, nil
}

// input reads a referenced node on behalf of n. An unregistered reference is
// attributed to n.
func (g *Graph) input(n *node, ref ir.NodeID, depth int) (ir.Value, error) {
	if _, ok := g.nodes[ref]; !ok {
		return nil, newMissingRef(n.id, ref)
	}
	return g.value(ref, depth+1)
}

// target resolves a node n writes to and checks its kind.
func (g *Graph) target(n *node, ref ir.NodeID, want ir.Kind) (*node, error) {
	t, ok := g.nodes[ref]
	if !ok {
		return nil, newMissingRef(n.id, ref)
	}
	if t.spec.Kind() != want {
		return nil, newKindMismatch(ref, t.spec.Kind(), want)
	}
	return t, nil
}

// evaluate dispatches on the node's spec. It must be a pure function of the
// values it reads, apart from the documented write side effects of Set and
// the clock control nodes.
func (g *Graph) evaluate(n *node, depth int) (ir.Value, error) {
	switch s := n.spec.(type) {
	case ir.ValueSpec:
		return n.stored, nil

	case ir.SetSpec:
		v, err := g.input(n, s.Source, depth)
		if err != nil {
			return nil, err
		}
		t, ok := g.nodes[s.Target]
		if !ok {
			return nil, newMissingRef(n.id, s.Target)
		}
		written, err := g.assign(t, v)
		if err != nil {
			return nil, err
		}
		g.markUpdated(written.id)
		return v, nil

	case ir.AlwaysSpec:
		if _, err := g.input(n, s.What, depth); err != nil {
			return nil, err
		}
		return ir.Number(0), nil

	case ir.ConcatSpec:
		var sb strings.Builder
		for _, ref := range s.Inputs {
			v, err := g.input(n, ref, depth)
			if err != nil {
				return nil, err
			}
			str, err := ir.Stringify(v)
			if err != nil {
				return nil, &Error{Code: ErrCodeInvalidConfig, Message: "cannot stringify input", NodeID: n.id, RefID: ref, Err: err}
			}
			sb.WriteString(str)
		}
		return ir.String(sb.String()), nil

	case ir.FunctionSpec:
		return g.input(n, s.What, depth)

	case ir.PropsSpec:
		return g.aggregate(n, s.Props, true, depth)

	case ir.StyleSpec:
		return g.aggregate(n, s.Style, false, depth)

	case ir.CondSpec:
		c, err := g.input(n, s.Cond, depth)
		if err != nil {
			return nil, err
		}
		if ir.Truthy(c) {
			return g.input(n, s.If, depth)
		}
		if s.HasElse {
			return g.input(n, s.Else, depth)
		}
		return ir.Null{}, nil

	case ir.BlockSpec:
		var last ir.Value = ir.Null{}
		for _, ref := range s.Inputs {
			v, err := g.input(n, ref, depth)
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil

	case ir.OpSpec:
		return g.evalOp(n, s, depth)

	case ir.DebugSpec:
		v, err := g.input(n, s.What, depth)
		if err != nil {
			return nil, err
		}
		msg := s.Message
		if msg == "" {
			msg = "debug"
		}
		rendered, _ := ir.Stringify(v)
		g.logger.Info(msg, "node_id", n.id, "loop_id", g.loopID, "value", rendered)
		return v, nil

	case ir.EventSpec:
		return ir.Number(0), nil

	case ir.ClockSpec:
		return ir.Number(g.frameTimeMs), nil

	case ir.ClockStartSpec:
		c, err := g.target(n, s.Clock, ir.KindClock)
		if err != nil {
			return nil, err
		}
		c.running = true
		return ir.Number(0), nil

	case ir.ClockStopSpec:
		c, err := g.target(n, s.Clock, ir.KindClock)
		if err != nil {
			return nil, err
		}
		c.running = false
		return ir.Number(0), nil

	case ir.ClockTestSpec:
		c, err := g.target(n, s.Clock, ir.KindClock)
		if err != nil {
			return nil, err
		}
		if c.running {
			return ir.Number(1), nil
		}
		return ir.Number(0), nil

	case ir.TransformSpec:
		out := make(ir.Array, len(s.Transforms))
		for i, t := range s.Transforms {
			v := t.Value
			if t.IsNode {
				var err error
				if v, err = g.input(n, t.Node, depth); err != nil {
					return nil, err
				}
			}
			if v == nil {
				v = ir.Null{}
			}
			out[i] = ir.Bundle{t.Property: v}
		}
		return out, nil

	case ir.BezierSpec:
		in, err := g.input(n, s.Input, depth)
		if err != nil {
			return nil, err
		}
		x, err := toNumber(in)
		if err != nil {
			return nil, &Error{Code: ErrCodeKindMismatch, Message: "bezier input: " + err.Error(), NodeID: n.id, RefID: s.Input}
		}
		return ir.Number(newCubicBezier(s.X1, s.Y1, s.X2, s.Y2).at(x)), nil

	case ir.ParamSpec:
		return g.readParam(n, depth)

	case ir.CallFuncSpec:
		return g.callFunc(n, s, depth)
	}

	return nil, &Error{
		Code:    ErrCodeUnknownKind,
		Message: fmt.Sprintf("no evaluation rule for %T", n.spec),
		NodeID:  n.id,
	}
}

// aggregate builds a keyed bundle. Props flatten Style inputs into the
// result, later keys overwriting earlier ones.
func (g *Graph) aggregate(n *node, refs []ir.KeyRef, flattenStyle bool, depth int) (ir.Value, error) {
	out := make(ir.Bundle, len(refs))
	for _, r := range refs {
		v, err := g.input(n, r.Node, depth)
		if err != nil {
			return nil, err
		}
		if flattenStyle {
			if style, ok := v.(ir.Bundle); ok && g.nodes[r.Node].spec.Kind() == ir.KindStyle {
				for _, k := range style.SortedKeys() {
					out[k] = style[k]
				}
				continue
			}
		}
		out[r.Key] = v
	}
	return out, nil
}
