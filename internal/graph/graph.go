package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/animgraph/internal/ir"
)

// DefaultMaxDepth bounds recursive evaluation through value().
const DefaultMaxDepth = 1000

// staleLoopID never equals a real clock value, so a node holding it always
// recomputes on next read.
const staleLoopID int64 = -1

// memo is one cached value. inPass records whether it was computed by a
// pass; values computed by reads between passes are never reused by a pass.
type memo struct {
	value  ir.Value
	loopID int64
	inPass bool
}

// node is one registry entry. Cross-node references are IDs only.
type node struct {
	id   ir.NodeID
	spec ir.Spec

	memo     memo
	calls    map[string]*memo // per function call site, keyed by call path
	children []ir.NodeID

	evaluating bool
	evalCount  int

	// Value nodes
	stored ir.Value
	// Clock nodes
	running bool
	// Param nodes, innermost call last
	args []binding
	// Props nodes, in connection order
	views []ir.ViewTag
}

// Graph is the explicit graph context: registry, update context and
// sink boundary for one animation session.
type Graph struct {
	nodes  map[ir.NodeID]*node
	dirty  dirtySet
	loopID int64
	inPass bool

	events      map[eventKey]ir.NodeID
	frameTimeMs float64

	sink     HostSink
	logger   *slog.Logger
	maxDepth int
	strict   bool

	onDiagnostic  func(Diagnostic)
	onPassRequest func()

	pass *passState
	// callID is the call path of the function being evaluated; empty at top level.
	callID string
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = l
	}
}

// WithMaxDepth bounds recursive evaluation depth.
func WithMaxDepth(depth int) Option {
	return func(g *Graph) {
		g.maxDepth = depth
	}
}

// WithStrict makes registry corruption panic instead of surfacing as a
// diagnostic. Development builds and tests run strict.
func WithStrict(strict bool) Option {
	return func(g *Graph) {
		g.strict = strict
	}
}

// WithDiagnostics registers a callback invoked for every diagnostic.
func WithDiagnostics(fn func(Diagnostic)) Option {
	return func(g *Graph) {
		g.onDiagnostic = fn
	}
}

// WithPassRequest registers a callback invoked when the graph moves from
// Idle to Pass-Pending.
func WithPassRequest(fn func()) Option {
	return func(g *Graph) {
		g.onPassRequest = fn
	}
}

// New creates an empty graph pushing sink updates to sink.
// A nil sink discards updates.
func New(sink HostSink, opts ...Option) *Graph {
	if sink == nil {
		sink = Discard
	}
	g := &Graph{
		nodes:    make(map[ir.NodeID]*node),
		dirty:    newDirtySet(),
		events:   make(map[eventKey]ir.NodeID),
		sink:     sink,
		logger:   slog.Default(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateNode registers a node. References in spec are not resolved until
// first evaluation, so nodes may be created in any order.
func (g *Graph) CreateNode(id ir.NodeID, spec ir.Spec) error {
	if spec == nil {
		return &Error{Code: ErrCodeInvalidConfig, Message: "nil spec", NodeID: id}
	}
	if err := ir.ValidateSpec(spec); err != nil {
		return &Error{Code: ErrCodeInvalidConfig, Message: "rejected node configuration", NodeID: id, Err: err}
	}
	if _, exists := g.nodes[id]; exists {
		return &Error{
			Code:    ErrCodeDuplicateID,
			Message: fmt.Sprintf("node %d already exists", id),
			NodeID:  id,
		}
	}

	n := &node{id: id, spec: spec, memo: memo{loopID: staleLoopID}}
	if vs, ok := spec.(ir.ValueSpec); ok {
		n.stored = vs.Initial
		if n.stored == nil {
			n.stored = ir.Null{}
		}
	}
	g.nodes[id] = n

	g.logger.Debug("node created", "node_id", id, "kind", spec.Kind())
	return nil
}

// CreateNodeFromConfig decodes kind-specific configuration and registers the
// node. Unknown kinds and malformed config leave the graph unchanged.
func (g *Graph) CreateNodeFromConfig(id ir.NodeID, kind ir.Kind, cfg ir.Bundle) error {
	spec, err := ir.DecodeSpec(kind, cfg)
	if err != nil {
		code := ErrCodeInvalidConfig
		if errors.Is(err, ir.ErrUnknownKind) {
			code = ErrCodeUnknownKind
		}
		return &Error{Code: code, Message: "rejected node configuration", NodeID: id, Err: err}
	}
	return g.CreateNode(id, spec)
}

// RemoveNode detaches and unregisters a node. Kind-specific teardown runs
// first: Props nodes release their views, Event nodes detach from every
// event slot and Clock nodes stop. Nodes still referencing id fail with
// MISSING_NODE on their next evaluation.
func (g *Graph) RemoveNode(id ir.NodeID) error {
	n, ok := g.nodes[id]
	if !ok {
		return newMissingNode(id)
	}

	g.teardown(n)

	for _, other := range g.nodes {
		other.children = slices.DeleteFunc(other.children, func(c ir.NodeID) bool { return c == id })
	}
	g.dirty.remove(id)
	delete(g.nodes, id)

	g.logger.Debug("node removed", "node_id", id)
	return nil
}

func (g *Graph) teardown(n *node) {
	switch n.spec.(type) {
	case ir.PropsSpec:
		for _, view := range n.views {
			g.logger.Debug("view released", "node_id", n.id, "view", view)
		}
		n.views = nil
	case ir.EventSpec:
		for key, target := range g.events {
			if target == n.id {
				delete(g.events, key)
			}
		}
	case ir.ClockSpec:
		n.running = false
	}
}

// Connect adds child as a dependent of parent. The child's cache is forced
// stale and the child becomes a dirty root, so a newly connected sink fires
// on the next pass. Connecting an existing edge is a no-op.
func (g *Graph) Connect(parent, child ir.NodeID) error {
	p, c, err := g.edgeEnds(parent, child)
	if err != nil {
		return err
	}
	if slices.Contains(p.children, child) {
		return nil
	}
	p.children = append(p.children, child)
	c.invalidate()
	g.markUpdated(c.id)
	return nil
}

// Disconnect removes child from parent's dependents. Both nodes must exist;
// a missing edge between live nodes is a no-op.
func (g *Graph) Disconnect(parent, child ir.NodeID) error {
	p, _, err := g.edgeEnds(parent, child)
	if err != nil {
		return err
	}
	p.children = slices.DeleteFunc(p.children, func(c ir.NodeID) bool { return c == child })
	return nil
}

func (g *Graph) edgeEnds(parent, child ir.NodeID) (*node, *node, error) {
	p, ok := g.nodes[parent]
	if !ok {
		return nil, nil, newMissingNode(parent)
	}
	c, ok := g.nodes[child]
	if !ok {
		return nil, nil, newMissingNode(child)
	}
	return p, c, nil
}

// SetValue stores v in a Value node and refreshes its cache for the current
// clock. It does not mark dependents dirty; call MarkUpdated for that.
func (g *Graph) SetValue(id ir.NodeID, v ir.Value) error {
	n, ok := g.nodes[id]
	if !ok {
		return newMissingNode(id)
	}
	return g.setValue(n, v)
}

func (g *Graph) setValue(n *node, v ir.Value) error {
	if _, ok := n.spec.(ir.ValueSpec); !ok {
		return newKindMismatch(n.id, n.spec.Kind(), ir.KindValue)
	}
	if v == nil {
		v = ir.Null{}
	}
	n.stored = v
	n.calls = nil
	n.memo = memo{value: v, loopID: g.loopID, inPass: true}
	return nil
}

// invalidate forces the next read of n to recompute in every call context.
func (n *node) invalidate() {
	n.memo.loopID = staleLoopID
	n.calls = nil
}

// slot returns the cache n uses in the given call context.
func (n *node) slot(callID string) *memo {
	if callID == "" {
		return &n.memo
	}
	m, ok := n.calls[callID]
	if !ok {
		if n.calls == nil {
			n.calls = make(map[string]*memo)
		}
		m = &memo{loopID: staleLoopID}
		n.calls[callID] = m
	}
	return m
}

// MarkUpdated registers id as a dirty root. Marking is idempotent until the
// next pass; marks made during a pass run in the following one.
func (g *Graph) MarkUpdated(id ir.NodeID) error {
	if _, ok := g.nodes[id]; !ok {
		return newMissingNode(id)
	}
	g.markUpdated(id)
	return nil
}

func (g *Graph) markUpdated(id ir.NodeID) {
	wasIdle := g.dirty.len() == 0
	if !g.dirty.add(id) {
		return
	}
	if wasIdle && g.onPassRequest != nil {
		g.onPassRequest()
	}
}

// Value returns the current value of a node, evaluating it if its cache is
// stale. Values computed here are reused by later reads at the same clock
// but never by a pass, so a read between passes cannot hide a SetValue made
// before the next pass.
func (g *Graph) Value(id ir.NodeID) (ir.Value, error) {
	if _, ok := g.nodes[id]; !ok {
		return nil, newMissingNode(id)
	}
	return g.value(id, 0)
}

// Has reports whether id is registered.
func (g *Graph) Has(id ir.NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Kind returns the kind of a registered node.
func (g *Graph) Kind(id ir.NodeID) (ir.Kind, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return "", false
	}
	return n.spec.Kind(), true
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Children returns the dependents of id in insertion order.
func (g *Graph) Children(id ir.NodeID) []ir.NodeID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return slices.Clone(n.children)
}

// LoopID returns the current logical clock.
func (g *Graph) LoopID() int64 {
	return g.loopID
}

// Pending reports whether the graph is Pass-Pending.
func (g *Graph) Pending() bool {
	return g.dirty.len() > 0
}

// DirtyRoots returns the registered dirty roots in marking order.
func (g *Graph) DirtyRoots() []ir.NodeID {
	return g.dirty.snapshot()
}

// NodeStats exposes memoization counters for one node.
type NodeStats struct {
	EvalCount  int
	LastLoopID int64
}

// Stats returns evaluation counters for id.
func (g *Graph) Stats(id ir.NodeID) (NodeStats, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return NodeStats{}, false
	}
	return NodeStats{EvalCount: n.evalCount, LastLoopID: n.memo.loopID}, true
}

// Load creates every node, edge, view binding and event binding in def,
// stopping at the first error.
func (g *Graph) Load(def *ir.GraphDef) error {
	for _, n := range def.Nodes {
		if err := g.CreateNode(n.ID, n.Spec); err != nil {
			return fmt.Errorf("node %q: %w", n.Label, err)
		}
	}
	for _, e := range def.Edges {
		if err := g.Connect(e.Parent, e.Child); err != nil {
			return fmt.Errorf("edge %d -> %d: %w", e.Parent, e.Child, err)
		}
	}
	for _, v := range def.Views {
		if err := g.ConnectToView(v.Node, v.View); err != nil {
			return fmt.Errorf("view %d: %w", v.View, err)
		}
	}
	for _, e := range def.Events {
		if err := g.AttachEvent(e.View, e.EventName, e.Node); err != nil {
			return fmt.Errorf("event %d/%s: %w", e.View, e.EventName, err)
		}
	}
	return nil
}
