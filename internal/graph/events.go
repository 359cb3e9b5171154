package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/animgraph/internal/ir"
)

type eventKey struct {
	view ir.ViewTag
	name string
}

// ConnectToView makes a Props node push to view on every pass that reaches
// it. Views are pushed in connection order. The node is marked so the new
// view receives the current bundle on the next pass.
func (g *Graph) ConnectToView(id ir.NodeID, view ir.ViewTag) error {
	n, err := g.propsNode(id)
	if err != nil {
		return err
	}
	if !slices.Contains(n.views, view) {
		n.views = append(n.views, view)
	}
	n.invalidate()
	g.markUpdated(id)
	return nil
}

// DisconnectFromView stops a Props node pushing to view. Disconnecting a
// view that is not connected is a no-op.
func (g *Graph) DisconnectFromView(id ir.NodeID, view ir.ViewTag) error {
	n, err := g.propsNode(id)
	if err != nil {
		return err
	}
	n.views = slices.DeleteFunc(n.views, func(v ir.ViewTag) bool { return v == view })
	return nil
}

// Views returns the views a Props node pushes to.
func (g *Graph) Views(id ir.NodeID) []ir.ViewTag {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return slices.Clone(n.views)
}

func (g *Graph) propsNode(id ir.NodeID) (*node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, newMissingNode(id)
	}
	if _, ok := n.spec.(ir.PropsSpec); !ok {
		return nil, newKindMismatch(id, n.spec.Kind(), ir.KindProps)
	}
	return n, nil
}

// AttachEvent routes (view, eventName) to an Event node. Each slot accepts
// one handler; attaching a second returns EVENT_CONFLICT.
func (g *Graph) AttachEvent(view ir.ViewTag, eventName string, id ir.NodeID) error {
	n, ok := g.nodes[id]
	if !ok {
		return newMissingNode(id)
	}
	if _, ok := n.spec.(ir.EventSpec); !ok {
		return newKindMismatch(id, n.spec.Kind(), ir.KindEvent)
	}
	key := eventKey{view: view, name: eventName}
	if existing, ok := g.events[key]; ok {
		return &Error{
			Code:    ErrCodeEventConflict,
			Message: fmt.Sprintf("event %d/%s already handled by node %d", view, eventName, existing),
			NodeID:  id,
			RefID:   existing,
		}
	}
	g.events[key] = id
	return nil
}

// DetachEvent removes the handler for (view, eventName) if it is id.
func (g *Graph) DetachEvent(view ir.ViewTag, eventName string, id ir.NodeID) error {
	key := eventKey{view: view, name: eventName}
	existing, ok := g.events[key]
	if !ok || existing != id {
		return &Error{
			Code:    ErrCodeMissingNode,
			Message: fmt.Sprintf("node is not attached to event %d/%s", view, eventName),
			NodeID:  id,
		}
	}
	delete(g.events, key)
	return nil
}

// DispatchEvent delivers a payload to the Event node attached to
// (view, eventName). Each mapped path present in the payload is written to
// its Value node, which is then marked updated. Missing paths leave their
// targets untouched. Returns false when no node is attached.
func (g *Graph) DispatchEvent(view ir.ViewTag, eventName string, payload ir.Bundle) (bool, error) {
	id, ok := g.events[eventKey{view: view, name: eventName}]
	if !ok {
		return false, nil
	}
	n, ok := g.nodes[id]
	if !ok {
		g.corrupt(id, fmt.Sprintf("event %d/%s attached to unregistered node", view, eventName))
		return false, nil
	}
	spec := n.spec.(ir.EventSpec)

	var errs []error
	for _, m := range spec.Mapping {
		v, found := lookupPath(payload, m.Path)
		if !found {
			continue
		}
		t, err := g.target(n, m.Target, ir.KindValue)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := g.setValue(t, v); err != nil {
			errs = append(errs, err)
			continue
		}
		g.markUpdated(t.id)
	}
	return true, errors.Join(errs...)
}

func lookupPath(payload ir.Bundle, path []string) (ir.Value, bool) {
	var cur ir.Value = payload
	for _, key := range path {
		b, ok := cur.(ir.Bundle)
		if !ok {
			return nil, false
		}
		cur, ok = b[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// AdvanceFrame records the frame time read by Clock nodes and marks every
// running clock updated, in ID order.
func (g *Graph) AdvanceFrame(frameTimeMs float64) {
	g.frameTimeMs = frameTimeMs

	var running []ir.NodeID
	for id, n := range g.nodes {
		if _, ok := n.spec.(ir.ClockSpec); !ok {
			continue
		}
		n.invalidate()
		if n.running {
			running = append(running, id)
		}
	}
	ir.SortIDs(running)
	for _, id := range running {
		g.markUpdated(id)
	}
}

// FrameTime returns the last frame time passed to AdvanceFrame.
func (g *Graph) FrameTime() float64 {
	return g.frameTimeMs
}
