package graph

import (
	"fmt"
	"strconv"

	"github.com/roach88/animgraph/internal/ir"
)

// binding is one argument bound to a Param node by a CallFunc.
type binding struct {
	arg ir.NodeID
	// callID is the caller's call path; the argument is read there.
	callID string
}

// callFunc binds each arg to its param, evaluates the function under a call
// path unique to this call site and unbinds again. Nodes evaluated inside
// the call memoize per call path, so one function serves many call sites.
func (g *Graph) callFunc(n *node, s ir.CallFuncSpec, depth int) (ir.Value, error) {
	if _, err := g.target(n, s.What, ir.KindFunction); err != nil {
		return nil, err
	}
	params := make([]*node, len(s.Params))
	for i, id := range s.Params {
		p, err := g.target(n, id, ir.KindParam)
		if err != nil {
			return nil, err
		}
		params[i] = p
	}

	caller := g.callID
	for i, p := range params {
		p.args = append(p.args, binding{arg: s.Args[i], callID: caller})
	}
	g.callID = caller + "/" + strconv.FormatInt(int64(n.id), 10)

	v, err := g.value(s.What, depth+1)

	g.callID = caller
	for _, p := range params {
		p.args = p.args[:len(p.args)-1]
	}
	return v, err
}

// readParam returns the value of the innermost argument bound to n, read in
// the caller's context.
func (g *Graph) readParam(n *node, depth int) (ir.Value, error) {
	if len(n.args) == 0 {
		return nil, &Error{Code: ErrCodeInvalidConfig, Message: "param read outside a function call", NodeID: n.id}
	}
	b := n.args[len(n.args)-1]

	inner := g.callID
	g.callID = b.callID
	v, err := g.input(n, b.arg, depth)
	g.callID = inner
	return v, err
}

// assign writes v into a Value node, or through a Param node into the
// argument it is bound to. It returns the Value node written.
func (g *Graph) assign(t *node, v ir.Value) (*node, error) {
	for hops := 0; ; hops++ {
		switch t.spec.(type) {
		case ir.ValueSpec:
			return t, g.setValue(t, v)
		case ir.ParamSpec:
		default:
			return nil, newKindMismatch(t.id, t.spec.Kind(), ir.KindValue, ir.KindParam)
		}

		if hops >= g.maxDepth {
			return nil, &Error{
				Code:    ErrCodeDepthExceeded,
				Message: fmt.Sprintf("param chain longer than %d", g.maxDepth),
				NodeID:  t.id,
			}
		}
		if len(t.args) == 0 {
			return nil, &Error{Code: ErrCodeInvalidConfig, Message: "param written outside a function call", NodeID: t.id}
		}
		b := t.args[len(t.args)-1]
		arg, ok := g.nodes[b.arg]
		if !ok {
			return nil, newMissingRef(t.id, b.arg)
		}
		t = arg
	}
}
