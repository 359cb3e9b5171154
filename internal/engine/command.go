package engine

import (
	"math"

	"github.com/roach88/animgraph/internal/ir"
)

// Op names an external command. The string form is what the store records.
type Op string

const (
	OpCreateNode     Op = "create_node"
	OpRemoveNode     Op = "remove_node"
	OpConnect        Op = "connect"
	OpDisconnect     Op = "disconnect"
	OpSetValue       Op = "set_value"
	OpMarkUpdated    Op = "mark_updated"
	OpConnectView    Op = "connect_view"
	OpDisconnectView Op = "disconnect_view"
	OpAttachEvent    Op = "attach_event"
	OpDetachEvent    Op = "detach_event"
	OpDispatchEvent  Op = "dispatch_event"
	OpConfigureProps Op = "configure_props"
	OpTick           Op = "tick"
)

// Command is one external call into the graph. Only the fields its Op uses
// are set.
type Command struct {
	Op Op

	// Node is the subject node; the parent for connect/disconnect.
	Node ir.NodeID
	// Child is the child for connect/disconnect.
	Child ir.NodeID

	Kind   ir.Kind
	Config ir.Bundle

	Value ir.Value

	View    ir.ViewTag
	Event   string
	Payload ir.Bundle

	FrameTimeMs float64

	UI     []string
	Native []string
}

// Args encodes the command's arguments for the session log.
func (c Command) Args() ir.Bundle {
	id := func(n ir.NodeID) ir.Value { return ir.Number(float64(n)) }
	view := ir.Number(float64(c.View))

	switch c.Op {
	case OpCreateNode:
		cfg := c.Config
		if cfg == nil {
			cfg = ir.Bundle{}
		}
		return ir.Bundle{"id": id(c.Node), "kind": ir.String(c.Kind), "config": cfg}
	case OpRemoveNode, OpMarkUpdated:
		return ir.Bundle{"id": id(c.Node)}
	case OpConnect, OpDisconnect:
		return ir.Bundle{"parent": id(c.Node), "child": id(c.Child)}
	case OpSetValue:
		v := c.Value
		if v == nil {
			v = ir.Null{}
		}
		return ir.Bundle{"id": id(c.Node), "value": v}
	case OpConnectView, OpDisconnectView:
		return ir.Bundle{"id": id(c.Node), "view": view}
	case OpAttachEvent, OpDetachEvent:
		return ir.Bundle{"view": view, "event": ir.String(c.Event), "id": id(c.Node)}
	case OpDispatchEvent:
		payload := c.Payload
		if payload == nil {
			payload = ir.Bundle{}
		}
		return ir.Bundle{"view": view, "event": ir.String(c.Event), "payload": payload}
	case OpConfigureProps:
		return ir.Bundle{"ui": stringArray(c.UI), "native": stringArray(c.Native)}
	case OpTick:
		return ir.Bundle{"frame_time_ms": ir.Number(c.FrameTimeMs)}
	}
	return ir.Bundle{}
}

// DecodeCommand rebuilds a command from its recorded op and arguments.
func DecodeCommand(op string, args ir.Bundle) (Command, error) {
	d := argDecoder{op: Op(op), args: args}
	c := Command{Op: Op(op)}

	switch c.Op {
	case OpCreateNode:
		c.Node = d.id("id")
		c.Kind = ir.Kind(d.str("kind"))
		c.Config = d.bundle("config")
	case OpRemoveNode, OpMarkUpdated:
		c.Node = d.id("id")
	case OpConnect, OpDisconnect:
		c.Node = d.id("parent")
		c.Child = d.id("child")
	case OpSetValue:
		c.Node = d.id("id")
		c.Value = d.value("value")
	case OpConnectView, OpDisconnectView:
		c.Node = d.id("id")
		c.View = ir.ViewTag(d.id("view"))
	case OpAttachEvent, OpDetachEvent:
		c.View = ir.ViewTag(d.id("view"))
		c.Event = d.str("event")
		c.Node = d.id("id")
	case OpDispatchEvent:
		c.View = ir.ViewTag(d.id("view"))
		c.Event = d.str("event")
		c.Payload = d.bundle("payload")
	case OpConfigureProps:
		c.UI = d.strs("ui")
		c.Native = d.strs("native")
	case OpTick:
		c.FrameTimeMs = d.number("frame_time_ms")
	default:
		return Command{}, &CommandError{Op: c.Op, Message: "unknown op"}
	}

	if d.err != nil {
		return Command{}, d.err
	}
	return c, nil
}

type argDecoder struct {
	op   Op
	args ir.Bundle
	err  error
}

func (d *argDecoder) fail(field, msg string) {
	if d.err == nil {
		d.err = &CommandError{Op: d.op, Field: field, Message: msg}
	}
}

func (d *argDecoder) value(field string) ir.Value {
	v, ok := d.args[field]
	if !ok {
		d.fail(field, "missing")
		return ir.Null{}
	}
	return v
}

func (d *argDecoder) id(field string) ir.NodeID {
	id, ok := ir.ValueToID(d.value(field))
	if !ok && d.err == nil {
		d.fail(field, "expected an integer")
	}
	return id
}

func (d *argDecoder) number(field string) float64 {
	n, ok := d.value(field).(ir.Number)
	if !ok {
		d.fail(field, "expected a number")
		return math.NaN()
	}
	return float64(n)
}

func (d *argDecoder) str(field string) string {
	s, ok := d.value(field).(ir.String)
	if !ok {
		d.fail(field, "expected a string")
	}
	return string(s)
}

func (d *argDecoder) bundle(field string) ir.Bundle {
	b, ok := d.value(field).(ir.Bundle)
	if !ok {
		d.fail(field, "expected an object")
	}
	return b
}

func (d *argDecoder) strs(field string) []string {
	arr, ok := d.value(field).(ir.Array)
	if !ok {
		d.fail(field, "expected a list")
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, elem := range arr {
		s, ok := elem.(ir.String)
		if !ok {
			d.fail(field, "expected a list of strings")
			return nil
		}
		out = append(out, string(s))
	}
	return out
}

func stringArray(ss []string) ir.Array {
	arr := make(ir.Array, len(ss))
	for i, s := range ss {
		arr[i] = ir.String(s)
	}
	return arr
}
