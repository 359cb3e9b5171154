package compiler

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/animgraph/internal/ir"
)

// CompileGraph parses a graph definition from the root CUE value of a
// definition package and stops at the first error.
//
// Nodes are declared under node, keyed by label. The node's id and kind sit
// next to its kind-specific configuration:
//
//	node: {
//		scrollY: {id: 1, kind: "value", value: 0}
//		header:  {id: 2, kind: "props", props: {top: node.scrollY.id}}
//	}
//	view: [{node: 2, view: 10}]
//	event: [{view: 10, event: "onScroll", node: 3}]
//	edge: [[1, 2]]
//	props: {ui: ["opacity"], native: ["top"]}
//
// Nodes are ordered by ID. Every node a spec reads becomes a parent edge of
// the reading node, followed by the explicit edge list with duplicates
// dropped. References are not resolved here; see Validate.
func CompileGraph(v cue.Value) (*ir.GraphDef, error) {
	def, errs := compileGraph(v, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return def, nil
}

func compileGraph(v cue.Value, mode LoadMode) (*ir.GraphDef, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var errs []error
	// fail records err and reports whether compilation should stop.
	fail := func(err error) bool {
		errs = append(errs, err)
		return mode == LoadModeFailFast
	}

	nodesVal := v.LookupPath(cue.ParsePath("node"))
	if !nodesVal.Exists() {
		return nil, []error{&CompileError{
			Code:    ErrCodeNoNodes,
			Field:   "node",
			Message: "at least one node is required",
			Pos:     v.Pos(),
		}}
	}
	iter, err := nodesVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	def := &ir.GraphDef{}
	for iter.Next() {
		n, err := compileNode(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			if fail(err) {
				return nil, errs
			}
			continue
		}
		def.Nodes = append(def.Nodes, n)
	}
	if len(def.Nodes) == 0 && len(errs) == 0 {
		return nil, []error{&CompileError{
			Code:    ErrCodeNoNodes,
			Field:   "node",
			Message: "at least one node is required",
			Pos:     nodesVal.Pos(),
		}}
	}
	slices.SortStableFunc(def.Nodes, func(a, b ir.NodeDef) int { return cmp.Compare(a.ID, b.ID) })

	seen := make(map[ir.Edge]bool)
	addEdge := func(e ir.Edge) {
		if !seen[e] {
			seen[e] = true
			def.Edges = append(def.Edges, e)
		}
	}
	for _, n := range def.Nodes {
		for _, ref := range n.Spec.Refs() {
			addEdge(ir.Edge{Parent: ref, Child: n.ID})
		}
	}

	edges, err := compileEdges(v)
	if err != nil && fail(err) {
		return nil, errs
	}
	for _, e := range edges {
		addEdge(e)
	}

	def.Views, err = compileViews(v)
	if err != nil && fail(err) {
		return nil, errs
	}
	def.Events, err = compileEvents(v)
	if err != nil && fail(err) {
		return nil, errs
	}
	def.Props, err = compileProps(v)
	if err != nil && fail(err) {
		return nil, errs
	}

	if len(errs) > 0 {
		return def, errs
	}
	return def, nil
}

// compileNode decodes one entry of the node struct.
func compileNode(label string, v cue.Value) (ir.NodeDef, error) {
	field := "node." + label
	raw, err := toValue(v)
	if err != nil {
		return ir.NodeDef{}, err
	}
	cfg, ok := raw.(ir.Bundle)
	if !ok {
		return ir.NodeDef{}, &CompileError{
			Code:    ErrCodeInvalidConfig,
			Field:   field,
			Message: fmt.Sprintf("node must be a struct, got %s", ir.TypeName(raw)),
			Pos:     v.Pos(),
		}
	}

	idVal, ok := cfg["id"]
	if !ok {
		return ir.NodeDef{}, &CompileError{Code: ErrCodeMissingID, Field: field + ".id", Message: "id is required", Pos: v.Pos()}
	}
	id, ok := ir.ValueToID(idVal)
	if !ok {
		return ir.NodeDef{}, &CompileError{
			Code:    ErrCodeInvalidID,
			Field:   field + ".id",
			Message: fmt.Sprintf("id must be an integer, got %s", ir.TypeName(idVal)),
			Pos:     fieldPos(v, "id"),
		}
	}

	kindVal, ok := cfg["kind"].(ir.String)
	if !ok {
		return ir.NodeDef{}, &CompileError{Code: ErrCodeMissingKind, Field: field + ".kind", Message: "kind is required and must be a string", Pos: v.Pos()}
	}
	kind := ir.Kind(kindVal)
	if !kind.IsValid() {
		return ir.NodeDef{}, &CompileError{
			Code:    ErrCodeUnknownKind,
			Field:   field + ".kind",
			Message: fmt.Sprintf("unknown kind %q", kind),
			Pos:     fieldPos(v, "kind"),
		}
	}

	delete(cfg, "id")
	delete(cfg, "kind")
	spec, err := ir.DecodeSpec(kind, cfg)
	if err != nil {
		ce := &CompileError{Code: ErrCodeInvalidConfig, Field: field, Message: err.Error(), Pos: v.Pos()}
		var se *ir.SpecError
		if errors.As(err, &se) && se.Field != "" {
			ce.Field = field + "." + se.Field
			ce.Message = se.Message
			ce.Pos = fieldPos(v, se.Field)
		}
		return ir.NodeDef{}, ce
	}
	return ir.NodeDef{ID: id, Label: label, Spec: spec}, nil
}

func compileEdges(v cue.Value) ([]ir.Edge, error) {
	arr, pos, err := section(v, "edge")
	if err != nil || arr == nil {
		return nil, err
	}
	edges := make([]ir.Edge, 0, len(arr))
	for i, raw := range arr {
		pair, ok := raw.(ir.Array)
		if ok && len(pair) == 2 {
			parent, ok1 := ir.ValueToID(pair[0])
			child, ok2 := ir.ValueToID(pair[1])
			if ok1 && ok2 {
				edges = append(edges, ir.Edge{Parent: parent, Child: child})
				continue
			}
		}
		return nil, &CompileError{
			Code:    ErrCodeInvalidEdge,
			Field:   fmt.Sprintf("edge[%d]", i),
			Message: "expected [parent, child] node ids",
			Pos:     pos,
		}
	}
	return edges, nil
}

func compileViews(v cue.Value) ([]ir.ViewBinding, error) {
	arr, pos, err := section(v, "view")
	if err != nil || arr == nil {
		return nil, err
	}
	views := make([]ir.ViewBinding, 0, len(arr))
	for i, raw := range arr {
		b, _ := raw.(ir.Bundle)
		node, ok1 := ir.ValueToID(b["node"])
		view, ok2 := ir.ValueToID(b["view"])
		if !ok1 || !ok2 {
			return nil, &CompileError{
				Code:    ErrCodeInvalidBinding,
				Field:   fmt.Sprintf("view[%d]", i),
				Message: "expected {node, view} integers",
				Pos:     pos,
			}
		}
		views = append(views, ir.ViewBinding{Node: node, View: ir.ViewTag(view)})
	}
	return views, nil
}

func compileEvents(v cue.Value) ([]ir.EventBinding, error) {
	arr, pos, err := section(v, "event")
	if err != nil || arr == nil {
		return nil, err
	}
	events := make([]ir.EventBinding, 0, len(arr))
	for i, raw := range arr {
		b, _ := raw.(ir.Bundle)
		node, ok1 := ir.ValueToID(b["node"])
		view, ok2 := ir.ValueToID(b["view"])
		name, ok3 := b["event"].(ir.String)
		if !ok1 || !ok2 || !ok3 || name == "" {
			return nil, &CompileError{
				Code:    ErrCodeInvalidBinding,
				Field:   fmt.Sprintf("event[%d]", i),
				Message: "expected {view, event, node} with a non-empty event name",
				Pos:     pos,
			}
		}
		events = append(events, ir.EventBinding{View: ir.ViewTag(view), EventName: string(name), Node: node})
	}
	return events, nil
}

func compileProps(v cue.Value) (ir.PropsConfig, error) {
	var cfg ir.PropsConfig
	pv := v.LookupPath(cue.ParsePath("props"))
	if !pv.Exists() {
		return cfg, nil
	}
	raw, err := toValue(pv)
	if err != nil {
		return cfg, err
	}
	b, ok := raw.(ir.Bundle)
	if !ok {
		return cfg, &CompileError{Code: ErrCodeInvalidProps, Field: "props", Message: "expected {ui, native}", Pos: pv.Pos()}
	}
	for key := range b {
		if key != "ui" && key != "native" {
			return cfg, &CompileError{Code: ErrCodeInvalidProps, Field: "props." + key, Message: "unknown field", Pos: fieldPos(pv, key)}
		}
	}
	if cfg.UI, err = propNames(b, "ui", pv); err != nil {
		return cfg, err
	}
	if cfg.Native, err = propNames(b, "native", pv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func propNames(b ir.Bundle, key string, v cue.Value) ([]string, error) {
	raw, ok := b[key]
	if !ok {
		return nil, nil
	}
	arr, ok := raw.(ir.Array)
	if !ok {
		return nil, &CompileError{Code: ErrCodeInvalidProps, Field: "props." + key, Message: "expected a list of prop names", Pos: fieldPos(v, key)}
	}
	names := make([]string, 0, len(arr))
	for _, elem := range arr {
		s, ok := elem.(ir.String)
		if !ok {
			return nil, &CompileError{Code: ErrCodeInvalidProps, Field: "props." + key, Message: "prop names must be strings", Pos: fieldPos(v, key)}
		}
		names = append(names, string(s))
	}
	return names, nil
}

// section returns the list at the top-level field name, or nil when the
// field is absent.
func section(v cue.Value, name string) (ir.Array, token.Pos, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return nil, token.NoPos, nil
	}
	raw, err := toValue(sv)
	if err != nil {
		return nil, sv.Pos(), err
	}
	arr, ok := raw.(ir.Array)
	if !ok {
		code := ErrCodeInvalidBinding
		if name == "edge" {
			code = ErrCodeInvalidEdge
		}
		return nil, sv.Pos(), &CompileError{Code: code, Field: name, Message: fmt.Sprintf("expected a list, got %s", ir.TypeName(raw)), Pos: sv.Pos()}
	}
	return arr, sv.Pos(), nil
}

// toValue converts a concrete CUE value into an ir.Value.
func toValue(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.IntKind, cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Number(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.Array{}
		for iter.Next() {
			elem, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		b := ir.Bundle{}
		for iter.Next() {
			elem, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			b[iter.Selector().Unquoted()] = elem
		}
		return b, nil
	}

	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return nil, &CompileError{
		Code:    ErrCodeIncomplete,
		Field:   "cue",
		Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
		Pos:     v.Pos(),
	}
}

// fieldPos returns the position of the field a decode error names, falling
// back to the enclosing struct.
func fieldPos(v cue.Value, field string) token.Pos {
	name, _, _ := strings.Cut(field, ".")
	name, _, _ = strings.Cut(name, "[")
	if fv := v.LookupPath(cue.MakePath(cue.Str(name))); fv.Exists() && fv.Pos().IsValid() {
		return fv.Pos()
	}
	return v.Pos()
}

// CompileError is a compilation error with source position.
type CompileError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	pos := token.NoPos
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		pos = positions[0]
	}
	return &CompileError{
		Code:    ErrCodeBuildFailed,
		Field:   "cue",
		Message: first.Error(),
		Pos:     pos,
	}
}
