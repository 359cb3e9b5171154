package ir

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUnknownKind is returned by DecodeSpec for a kind tag with no variant.
var ErrUnknownKind = errors.New("unknown node kind")

// SpecError describes malformed node configuration.
type SpecError struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *SpecError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s", e.Kind, e.Field, e.Message)
}

// specFields lists the config keys each kind accepts.
var specFields = map[Kind][]string{
	KindValue:      {"value"},
	KindSet:        {"target", "source"},
	KindAlways:     {"what"},
	KindConcat:     {"input"},
	KindFunction:   {"what"},
	KindProps:      {"props"},
	KindStyle:      {"style"},
	KindCond:       {"cond", "if", "else"},
	KindBlock:      {"block"},
	KindOp:         {"op", "input"},
	KindDebug:      {"message", "value"},
	KindEvent:      {"mapping"},
	KindClock:      {},
	KindClockStart: {"clock"},
	KindClockStop:  {"clock"},
	KindClockTest:  {"clock"},
	KindTransform:  {"transform"},
	KindBezier:     {"input", "mX1", "mY1", "mX2", "mY2"},
	KindParam:      {},
	KindCallFunc:   {"what", "args", "params"},
}

// DecodeSpec builds the variant for kind from its keyed configuration and
// checks it with ValidateSpec. Unknown keys are rejected. Referenced IDs are
// not resolved here.
func DecodeSpec(kind Kind, cfg Bundle) (Spec, error) {
	fields, ok := specFields[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	for _, k := range cfg.SortedKeys() {
		if !contains(fields, k) {
			return nil, &SpecError{Kind: kind, Field: k, Message: "unknown field"}
		}
	}

	d := decoder{kind: kind, cfg: cfg}
	var s Spec
	switch kind {
	case KindValue:
		initial, ok := cfg["value"]
		if !ok {
			initial = Null{}
		}
		s = ValueSpec{Initial: initial}
	case KindSet:
		s = SetSpec{Target: d.id("target"), Source: d.id("source")}
	case KindAlways:
		s = AlwaysSpec{What: d.id("what")}
	case KindConcat:
		s = ConcatSpec{Inputs: d.ids("input")}
	case KindFunction:
		s = FunctionSpec{What: d.id("what")}
	case KindProps:
		s = PropsSpec{Props: d.keyRefs("props")}
	case KindStyle:
		s = StyleSpec{Style: d.keyRefs("style")}
	case KindCond:
		c := CondSpec{Cond: d.id("cond"), If: d.id("if")}
		if _, ok := cfg["else"]; ok {
			c.Else = d.id("else")
			c.HasElse = true
		}
		s = c
	case KindBlock:
		s = BlockSpec{Inputs: d.ids("block")}
	case KindOp:
		s = OpSpec{Op: d.str("op"), Inputs: d.ids("input")}
	case KindDebug:
		msg := ""
		if _, ok := cfg["message"]; ok {
			msg = d.str("message")
		}
		s = DebugSpec{Message: msg, What: d.id("value")}
	case KindEvent:
		s = EventSpec{Mapping: d.mapping("mapping")}
	case KindClock:
		s = ClockSpec{}
	case KindClockStart:
		s = ClockStartSpec{Clock: d.id("clock")}
	case KindClockStop:
		s = ClockStopSpec{Clock: d.id("clock")}
	case KindClockTest:
		s = ClockTestSpec{Clock: d.id("clock")}
	case KindTransform:
		s = TransformSpec{Transforms: d.transforms("transform")}
	case KindBezier:
		s = BezierSpec{
			Input: d.id("input"),
			X1:    d.num("mX1"),
			Y1:    d.num("mY1"),
			X2:    d.num("mX2"),
			Y2:    d.num("mY2"),
		}
	case KindParam:
		s = ParamSpec{}
	case KindCallFunc:
		s = CallFuncSpec{What: d.id("what"), Args: d.ids("args"), Params: d.ids("params")}
	}
	if d.err != nil {
		return nil, d.err
	}
	if err := ValidateSpec(s); err != nil {
		return nil, err
	}
	return s, nil
}

// EncodeSpec is the inverse of DecodeSpec.
func EncodeSpec(s Spec) Bundle {
	switch x := s.(type) {
	case ValueSpec:
		initial := x.Initial
		if initial == nil {
			initial = Null{}
		}
		return Bundle{"value": initial}
	case SetSpec:
		return Bundle{"target": idValue(x.Target), "source": idValue(x.Source)}
	case AlwaysSpec:
		return Bundle{"what": idValue(x.What)}
	case ConcatSpec:
		return Bundle{"input": idArray(x.Inputs)}
	case FunctionSpec:
		return Bundle{"what": idValue(x.What)}
	case PropsSpec:
		return Bundle{"props": keyRefBundle(x.Props)}
	case StyleSpec:
		return Bundle{"style": keyRefBundle(x.Style)}
	case CondSpec:
		b := Bundle{"cond": idValue(x.Cond), "if": idValue(x.If)}
		if x.HasElse {
			b["else"] = idValue(x.Else)
		}
		return b
	case BlockSpec:
		return Bundle{"block": idArray(x.Inputs)}
	case OpSpec:
		return Bundle{"op": String(x.Op), "input": idArray(x.Inputs)}
	case DebugSpec:
		return Bundle{"message": String(x.Message), "value": idValue(x.What)}
	case EventSpec:
		arr := make(Array, len(x.Mapping))
		for i, m := range x.Mapping {
			path := make(Array, len(m.Path))
			for j, p := range m.Path {
				path[j] = String(p)
			}
			arr[i] = Bundle{"path": path, "target": idValue(m.Target)}
		}
		return Bundle{"mapping": arr}
	case ClockStartSpec:
		return Bundle{"clock": idValue(x.Clock)}
	case ClockStopSpec:
		return Bundle{"clock": idValue(x.Clock)}
	case ClockTestSpec:
		return Bundle{"clock": idValue(x.Clock)}
	case TransformSpec:
		arr := make(Array, len(x.Transforms))
		for i, t := range x.Transforms {
			if t.IsNode {
				arr[i] = Bundle{"property": String(t.Property), "node": idValue(t.Node)}
				continue
			}
			v := t.Value
			if v == nil {
				v = Null{}
			}
			arr[i] = Bundle{"property": String(t.Property), "value": v}
		}
		return Bundle{"transform": arr}
	case BezierSpec:
		return Bundle{
			"input": idValue(x.Input),
			"mX1":   Number(x.X1),
			"mY1":   Number(x.Y1),
			"mX2":   Number(x.X2),
			"mY2":   Number(x.Y2),
		}
	case CallFuncSpec:
		return Bundle{"what": idValue(x.What), "args": idArray(x.Args), "params": idArray(x.Params)}
	}
	return Bundle{}
}

// ValueToID converts a Number holding an integer into a NodeID.
func ValueToID(v Value) (NodeID, bool) {
	n, ok := v.(Number)
	if !ok {
		return 0, false
	}
	f := float64(n)
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return NodeID(f), true
}

type decoder struct {
	kind Kind
	cfg  Bundle
	err  error
}

func (d *decoder) fail(field, msg string) {
	if d.err == nil {
		d.err = &SpecError{Kind: d.kind, Field: field, Message: msg}
	}
}

func (d *decoder) required(field string) (Value, bool) {
	v, ok := d.cfg[field]
	if !ok {
		d.fail(field, "required")
		return nil, false
	}
	return v, true
}

func (d *decoder) id(field string) NodeID {
	v, ok := d.required(field)
	if !ok {
		return 0
	}
	id, ok := ValueToID(v)
	if !ok {
		d.fail(field, fmt.Sprintf("expected node id, got %s", TypeName(v)))
	}
	return id
}

func (d *decoder) ids(field string) []NodeID {
	v, ok := d.required(field)
	if !ok {
		return nil
	}
	arr, ok := v.(Array)
	if !ok {
		d.fail(field, fmt.Sprintf("expected array of node ids, got %s", TypeName(v)))
		return nil
	}
	ids := make([]NodeID, len(arr))
	for i, elem := range arr {
		id, ok := ValueToID(elem)
		if !ok {
			d.fail(fmt.Sprintf("%s[%d]", field, i), fmt.Sprintf("expected node id, got %s", TypeName(elem)))
			return nil
		}
		ids[i] = id
	}
	return ids
}

func (d *decoder) str(field string) string {
	v, ok := d.required(field)
	if !ok {
		return ""
	}
	s, ok := v.(String)
	if !ok {
		d.fail(field, fmt.Sprintf("expected string, got %s", TypeName(v)))
	}
	return string(s)
}

func (d *decoder) num(field string) float64 {
	v, ok := d.required(field)
	if !ok {
		return 0
	}
	n, ok := v.(Number)
	if !ok {
		d.fail(field, fmt.Sprintf("expected number, got %s", TypeName(v)))
	}
	return float64(n)
}

// transforms decodes [{property, node} | {property, value}, ...].
func (d *decoder) transforms(field string) []TransformEntry {
	v, ok := d.required(field)
	if !ok {
		return nil
	}
	arr, ok := v.(Array)
	if !ok {
		d.fail(field, fmt.Sprintf("expected array, got %s", TypeName(v)))
		return nil
	}
	out := make([]TransformEntry, 0, len(arr))
	for i, elem := range arr {
		where := fmt.Sprintf("%s[%d]", field, i)
		entry, ok := elem.(Bundle)
		if !ok {
			d.fail(where, fmt.Sprintf("expected {property, node|value}, got %s", TypeName(elem)))
			return nil
		}
		for _, k := range entry.SortedKeys() {
			if k != "property" && k != "node" && k != "value" {
				d.fail(where+"."+k, "unknown field")
				return nil
			}
		}
		prop, ok := entry["property"].(String)
		if !ok {
			d.fail(where+".property", "expected string")
			return nil
		}
		t := TransformEntry{Property: string(prop)}
		raw, hasNode := entry["node"]
		constant, hasValue := entry["value"]
		switch {
		case hasNode && hasValue:
			d.fail(where, "node and value are exclusive")
			return nil
		case hasNode:
			id, ok := ValueToID(raw)
			if !ok {
				d.fail(where+".node", fmt.Sprintf("expected node id, got %s", TypeName(raw)))
				return nil
			}
			t.Node, t.IsNode = id, true
		case hasValue:
			t.Value = constant
		default:
			d.fail(where, "one of node or value is required")
			return nil
		}
		out = append(out, t)
	}
	return out
}

func (d *decoder) keyRefs(field string) []KeyRef {
	v, ok := d.required(field)
	if !ok {
		return nil
	}
	b, ok := v.(Bundle)
	if !ok {
		d.fail(field, fmt.Sprintf("expected mapping of key to node id, got %s", TypeName(v)))
		return nil
	}
	refs := make([]KeyRef, 0, len(b))
	for _, k := range b.SortedKeys() {
		id, ok := ValueToID(b[k])
		if !ok {
			d.fail(field+"."+k, fmt.Sprintf("expected node id, got %s", TypeName(b[k])))
			return nil
		}
		refs = append(refs, KeyRef{Key: k, Node: id})
	}
	return refs
}

func (d *decoder) mapping(field string) []EventMapping {
	v, ok := d.required(field)
	if !ok {
		return nil
	}
	arr, ok := v.(Array)
	if !ok {
		d.fail(field, fmt.Sprintf("expected array, got %s", TypeName(v)))
		return nil
	}
	out := make([]EventMapping, 0, len(arr))
	for i, elem := range arr {
		where := fmt.Sprintf("%s[%d]", field, i)
		entry, ok := elem.(Bundle)
		if !ok {
			d.fail(where, fmt.Sprintf("expected {path, target}, got %s", TypeName(elem)))
			return nil
		}
		rawPath, ok := entry["path"].(Array)
		if !ok || len(rawPath) == 0 {
			d.fail(where+".path", "expected non-empty array of keys")
			return nil
		}
		path := make([]string, len(rawPath))
		for j, p := range rawPath {
			s, ok := p.(String)
			if !ok {
				d.fail(fmt.Sprintf("%s.path[%d]", where, j), fmt.Sprintf("expected string, got %s", TypeName(p)))
				return nil
			}
			path[j] = string(s)
		}
		target, ok := ValueToID(entry["target"])
		if !ok {
			d.fail(where+".target", "expected node id")
			return nil
		}
		out = append(out, EventMapping{Path: path, Target: target})
	}
	return out
}

func idValue(id NodeID) Value {
	return Number(id)
}

func idArray(ids []NodeID) Array {
	arr := make(Array, len(ids))
	for i, id := range ids {
		arr[i] = Number(id)
	}
	return arr
}

func keyRefBundle(refs []KeyRef) Bundle {
	b := make(Bundle, len(refs))
	for _, r := range refs {
		b[r.Key] = Number(r.Node)
	}
	return b
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// SortIDs sorts ids ascending in place.
func SortIDs(ids []NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
