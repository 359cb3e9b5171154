package ir

// NodeID identifies a node for its whole lifetime. IDs are never reused
// while any live node references them.
type NodeID int64

// Kind is the tag selecting a node variant at creation time.
type Kind string

// Node kinds.
const (
	KindValue      Kind = "value"
	KindSet        Kind = "set"
	KindAlways     Kind = "always"
	KindConcat     Kind = "concat"
	KindFunction   Kind = "function"
	KindProps      Kind = "props"
	KindStyle      Kind = "style"
	KindCond       Kind = "cond"
	KindBlock      Kind = "block"
	KindOp         Kind = "op"
	KindDebug      Kind = "debug"
	KindEvent      Kind = "event"
	KindClock      Kind = "clock"
	KindClockStart Kind = "clockStart"
	KindClockStop  Kind = "clockStop"
	KindClockTest  Kind = "clockTest"
	KindTransform  Kind = "transform"
	KindBezier     Kind = "bezier"
	KindParam      Kind = "param"
	KindCallFunc   Kind = "callfunc"
)

// Kinds lists every node kind in declaration order.
var Kinds = []Kind{
	KindValue, KindSet, KindAlways, KindConcat, KindFunction, KindProps,
	KindStyle, KindCond, KindBlock, KindOp, KindDebug, KindEvent,
	KindClock, KindClockStart, KindClockStop, KindClockTest,
	KindTransform, KindBezier, KindParam, KindCallFunc,
}

// IsValid reports whether k names a known node kind.
func (k Kind) IsValid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsSink reports whether nodes of this kind have the sink capability.
func (k Kind) IsSink() bool {
	return k == KindProps || k == KindAlways
}

// BreaksCycles reports whether nodes of this kind hold state that is read
// without evaluating upstream nodes, so a reference loop through them is not
// an evaluation cycle.
func (k Kind) BreaksCycles() bool {
	return k == KindValue || k == KindClock
}

// Spec is the sealed sum type of kind-specific node configuration.
// Specs are immutable after construction.
type Spec interface {
	Kind() Kind

	// Refs returns every node ID this spec reads from, in evaluation order.
	// Each ref becomes a parent edge when the graph is compiled.
	Refs() []NodeID

	spec() // sealed marker
}

// KeyRef binds an output key to an input node.
type KeyRef struct {
	Key  string
	Node NodeID
}

// EventMapping routes the value at Path inside an event payload into the
// Value node Target.
type EventMapping struct {
	Path   []string
	Target NodeID
}

// ValueSpec configures a Value node with its initial value.
type ValueSpec struct {
	Initial Value
}

// SetSpec configures a Set node that copies Source into the Value node Target.
type SetSpec struct {
	Target NodeID
	Source NodeID
}

// AlwaysSpec configures an Always node that evaluates What on every pass it is reached.
type AlwaysSpec struct {
	What NodeID
}

// ConcatSpec configures a Concat node over Inputs.
type ConcatSpec struct {
	Inputs []NodeID
}

// FunctionSpec configures a Function node returning the value of What.
type FunctionSpec struct {
	What NodeID
}

// PropsSpec configures a Props sink. Entries are ordered by key.
type PropsSpec struct {
	Props []KeyRef
}

// StyleSpec configures a Style aggregate. Entries are ordered by key.
type StyleSpec struct {
	Style []KeyRef
}

// CondSpec configures a Cond node. Else is only read when HasElse is set.
type CondSpec struct {
	Cond    NodeID
	If      NodeID
	Else    NodeID
	HasElse bool
}

// BlockSpec configures a Block node returning the last of Inputs.
type BlockSpec struct {
	Inputs []NodeID
}

// OpSpec configures an operator node.
type OpSpec struct {
	Op     string
	Inputs []NodeID
}

// DebugSpec configures a Debug node that logs Message with the value of What.
type DebugSpec struct {
	Message string
	What    NodeID
}

// EventSpec configures an Event node.
type EventSpec struct {
	Mapping []EventMapping
}

// ClockSpec configures a Clock node.
type ClockSpec struct{}

// ClockStartSpec configures a node that starts Clock when evaluated.
type ClockStartSpec struct {
	Clock NodeID
}

// ClockStopSpec configures a node that stops Clock when evaluated.
type ClockStopSpec struct {
	Clock NodeID
}

// ClockTestSpec configures a node reporting whether Clock is running.
type ClockTestSpec struct {
	Clock NodeID
}

// TransformEntry is one step of a transform list. The step's value is read
// from Node when IsNode is set, otherwise it is the constant Value.
type TransformEntry struct {
	Property string
	Node     NodeID
	Value    Value
	IsNode   bool
}

// TransformSpec configures an ordered transform list such as
// [{translateX: 10}, {rotate: "45deg"}].
type TransformSpec struct {
	Transforms []TransformEntry
}

// BezierSpec configures cubic-bezier easing of Input with control points
// (X1, Y1) and (X2, Y2).
type BezierSpec struct {
	Input  NodeID
	X1, Y1 float64
	X2, Y2 float64
}

// ParamSpec configures a function parameter. Reads and writes go to the
// argument bound by the innermost CallFunc evaluating it.
type ParamSpec struct{}

// CallFuncSpec configures a call of the Function node What, binding
// Args[i] to the Param node Params[i] for the duration of the call.
type CallFuncSpec struct {
	What   NodeID
	Args   []NodeID
	Params []NodeID
}

func (ValueSpec) Kind() Kind      { return KindValue }
func (SetSpec) Kind() Kind        { return KindSet }
func (AlwaysSpec) Kind() Kind     { return KindAlways }
func (ConcatSpec) Kind() Kind     { return KindConcat }
func (FunctionSpec) Kind() Kind   { return KindFunction }
func (PropsSpec) Kind() Kind      { return KindProps }
func (StyleSpec) Kind() Kind      { return KindStyle }
func (CondSpec) Kind() Kind       { return KindCond }
func (BlockSpec) Kind() Kind      { return KindBlock }
func (OpSpec) Kind() Kind         { return KindOp }
func (DebugSpec) Kind() Kind      { return KindDebug }
func (EventSpec) Kind() Kind      { return KindEvent }
func (ClockSpec) Kind() Kind      { return KindClock }
func (ClockStartSpec) Kind() Kind { return KindClockStart }
func (ClockStopSpec) Kind() Kind  { return KindClockStop }
func (ClockTestSpec) Kind() Kind  { return KindClockTest }
func (TransformSpec) Kind() Kind  { return KindTransform }
func (BezierSpec) Kind() Kind     { return KindBezier }
func (ParamSpec) Kind() Kind      { return KindParam }
func (CallFuncSpec) Kind() Kind   { return KindCallFunc }

func (ValueSpec) Refs() []NodeID       { return nil }
func (s SetSpec) Refs() []NodeID       { return []NodeID{s.Source} }
func (s AlwaysSpec) Refs() []NodeID    { return []NodeID{s.What} }
func (s ConcatSpec) Refs() []NodeID    { return append([]NodeID(nil), s.Inputs...) }
func (s FunctionSpec) Refs() []NodeID  { return []NodeID{s.What} }
func (s PropsSpec) Refs() []NodeID     { return keyRefIDs(s.Props) }
func (s StyleSpec) Refs() []NodeID     { return keyRefIDs(s.Style) }
func (s BlockSpec) Refs() []NodeID     { return append([]NodeID(nil), s.Inputs...) }
func (s OpSpec) Refs() []NodeID        { return append([]NodeID(nil), s.Inputs...) }
func (s DebugSpec) Refs() []NodeID     { return []NodeID{s.What} }
func (ClockSpec) Refs() []NodeID       { return nil }
func (ClockStartSpec) Refs() []NodeID  { return nil }
func (ClockStopSpec) Refs() []NodeID   { return nil }
func (s ClockTestSpec) Refs() []NodeID { return []NodeID{s.Clock} }
func (s BezierSpec) Refs() []NodeID    { return []NodeID{s.Input} }
func (ParamSpec) Refs() []NodeID       { return nil }

func (s TransformSpec) Refs() []NodeID {
	var ids []NodeID
	for _, t := range s.Transforms {
		if t.IsNode {
			ids = append(ids, t.Node)
		}
	}
	return ids
}

func (s CallFuncSpec) Refs() []NodeID {
	return append([]NodeID{s.What}, s.Args...)
}

func (s CondSpec) Refs() []NodeID {
	if s.HasElse {
		return []NodeID{s.Cond, s.If, s.Else}
	}
	return []NodeID{s.Cond, s.If}
}

func (EventSpec) Refs() []NodeID { return nil }

// Writes returns the node IDs a spec mutates rather than reads. They must
// resolve like refs but never become edges, otherwise a Set node would
// re-trigger itself through its own target. CallFunc counts its params as
// writes since it binds them.
func Writes(s Spec) []NodeID {
	switch x := s.(type) {
	case SetSpec:
		return []NodeID{x.Target}
	case ClockStartSpec:
		return []NodeID{x.Clock}
	case ClockStopSpec:
		return []NodeID{x.Clock}
	case EventSpec:
		ids := make([]NodeID, len(x.Mapping))
		for i, m := range x.Mapping {
			ids[i] = m.Target
		}
		return ids
	case CallFuncSpec:
		return append([]NodeID(nil), x.Params...)
	}
	return nil
}

// WriteKinds returns the node kinds the targets in Writes(s) may have.
func WriteKinds(s Spec) []Kind {
	switch s.(type) {
	case SetSpec:
		return []Kind{KindValue, KindParam}
	case ClockStartSpec, ClockStopSpec:
		return []Kind{KindClock}
	case EventSpec:
		return []Kind{KindValue}
	case CallFuncSpec:
		return []Kind{KindParam}
	}
	return nil
}

func (ValueSpec) spec()      {}
func (SetSpec) spec()        {}
func (AlwaysSpec) spec()     {}
func (ConcatSpec) spec()     {}
func (FunctionSpec) spec()   {}
func (PropsSpec) spec()      {}
func (StyleSpec) spec()      {}
func (CondSpec) spec()       {}
func (BlockSpec) spec()      {}
func (OpSpec) spec()         {}
func (DebugSpec) spec()      {}
func (EventSpec) spec()      {}
func (ClockSpec) spec()      {}
func (ClockStartSpec) spec() {}
func (ClockStopSpec) spec()  {}
func (ClockTestSpec) spec()  {}
func (TransformSpec) spec()  {}
func (BezierSpec) spec()     {}
func (ParamSpec) spec()      {}
func (CallFuncSpec) spec()   {}

func keyRefIDs(refs []KeyRef) []NodeID {
	ids := make([]NodeID, len(refs))
	for i, r := range refs {
		ids[i] = r.Node
	}
	return ids
}
