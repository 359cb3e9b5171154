package ir

import "fmt"

// ViewTag identifies a host view that Props nodes push updates to.
type ViewTag int64

// NodeDef is one node of a compiled graph definition.
type NodeDef struct {
	ID    NodeID
	Label string
	Spec  Spec
}

// Edge connects a parent (read from) to a child (reads it).
type Edge struct {
	Parent NodeID
	Child  NodeID
}

// ViewBinding connects a Props node to a host view.
type ViewBinding struct {
	Node NodeID
	View ViewTag
}

// EventBinding attaches an Event node to a view event.
type EventBinding struct {
	View      ViewTag
	EventName string
	Node      NodeID
}

// PropsConfig lists prop names the host applies on the UI and native channels.
// Any other key is routed to the JS channel.
type PropsConfig struct {
	UI     []string
	Native []string
}

// GraphDef is a complete graph definition: nodes in creation order, then
// edges, view bindings and event bindings in application order.
type GraphDef struct {
	Nodes  []NodeDef
	Edges  []Edge
	Views  []ViewBinding
	Events []EventBinding
	Props  PropsConfig
}

// Node returns the definition with the given ID.
func (g *GraphDef) Node(id NodeID) (NodeDef, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeDef{}, false
}

// ToBundle renders the definition as a Bundle for canonical encoding.
func (g *GraphDef) ToBundle() Bundle {
	nodes := make(Array, len(g.Nodes))
	for i, n := range g.Nodes {
		nodes[i] = Bundle{
			"id":     Number(n.ID),
			"label":  String(n.Label),
			"kind":   String(n.Spec.Kind()),
			"config": EncodeSpec(n.Spec),
		}
	}
	edges := make(Array, len(g.Edges))
	for i, e := range g.Edges {
		edges[i] = Array{Number(e.Parent), Number(e.Child)}
	}
	views := make(Array, len(g.Views))
	for i, v := range g.Views {
		views[i] = Bundle{"node": Number(v.Node), "view": Number(v.View)}
	}
	events := make(Array, len(g.Events))
	for i, e := range g.Events {
		events[i] = Bundle{"view": Number(e.View), "event": String(e.EventName), "node": Number(e.Node)}
	}
	return Bundle{
		"version": String(DefinitionVersion),
		"nodes":   nodes,
		"edges":   edges,
		"views":   views,
		"events":  events,
		"props": Bundle{
			"ui":     stringArray(g.Props.UI),
			"native": stringArray(g.Props.Native),
		},
	}
}

// GraphDefFromBundle parses the output of ToBundle.
func GraphDefFromBundle(b Bundle) (*GraphDef, error) {
	if v, _ := b["version"].(String); string(v) != DefinitionVersion {
		return nil, fmt.Errorf("unsupported definition version %q", v)
	}
	def := &GraphDef{}

	nodes, _ := b["nodes"].(Array)
	for i, raw := range nodes {
		nb, ok := raw.(Bundle)
		if !ok {
			return nil, fmt.Errorf("nodes[%d]: expected bundle", i)
		}
		id, ok := ValueToID(nb["id"])
		if !ok {
			return nil, fmt.Errorf("nodes[%d]: invalid id", i)
		}
		kind, _ := nb["kind"].(String)
		cfg, _ := nb["config"].(Bundle)
		spec, err := DecodeSpec(Kind(kind), cfg)
		if err != nil {
			return nil, fmt.Errorf("nodes[%d]: %w", i, err)
		}
		label, _ := nb["label"].(String)
		def.Nodes = append(def.Nodes, NodeDef{ID: id, Label: string(label), Spec: spec})
	}

	edges, _ := b["edges"].(Array)
	for i, raw := range edges {
		pair, ok := raw.(Array)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("edges[%d]: expected [parent, child]", i)
		}
		parent, ok1 := ValueToID(pair[0])
		child, ok2 := ValueToID(pair[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("edges[%d]: invalid node id", i)
		}
		def.Edges = append(def.Edges, Edge{Parent: parent, Child: child})
	}

	views, _ := b["views"].(Array)
	for i, raw := range views {
		vb, _ := raw.(Bundle)
		node, ok1 := ValueToID(vb["node"])
		view, ok2 := ValueToID(vb["view"])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("views[%d]: invalid binding", i)
		}
		def.Views = append(def.Views, ViewBinding{Node: node, View: ViewTag(view)})
	}

	events, _ := b["events"].(Array)
	for i, raw := range events {
		eb, _ := raw.(Bundle)
		node, ok1 := ValueToID(eb["node"])
		view, ok2 := ValueToID(eb["view"])
		name, ok3 := eb["event"].(String)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("events[%d]: invalid binding", i)
		}
		def.Events = append(def.Events, EventBinding{View: ViewTag(view), EventName: string(name), Node: node})
	}

	props, _ := b["props"].(Bundle)
	def.Props.UI = stringsOf(props["ui"])
	def.Props.Native = stringsOf(props["native"])
	return def, nil
}

func stringArray(ss []string) Array {
	arr := make(Array, len(ss))
	for i, s := range ss {
		arr[i] = String(s)
	}
	return arr
}

func stringsOf(v Value) []string {
	arr, _ := v.(Array)
	if len(arr) == 0 {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, elem := range arr {
		if s, ok := elem.(String); ok {
			out = append(out, string(s))
		}
	}
	return out
}
