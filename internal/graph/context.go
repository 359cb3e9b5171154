package graph

import (
	"slices"

	"github.com/roach88/animgraph/internal/ir"
)

// dirtySet is the ordered, deduplicated set of dirty roots.
type dirtySet struct {
	order []ir.NodeID
	index map[ir.NodeID]struct{}
}

func newDirtySet() dirtySet {
	return dirtySet{index: make(map[ir.NodeID]struct{})}
}

// add returns false if id was already marked.
func (d *dirtySet) add(id ir.NodeID) bool {
	if _, ok := d.index[id]; ok {
		return false
	}
	d.index[id] = struct{}{}
	d.order = append(d.order, id)
	return true
}

func (d *dirtySet) remove(id ir.NodeID) {
	if _, ok := d.index[id]; !ok {
		return
	}
	delete(d.index, id)
	d.order = slices.DeleteFunc(d.order, func(x ir.NodeID) bool { return x == id })
}

func (d *dirtySet) len() int {
	return len(d.order)
}

func (d *dirtySet) snapshot() []ir.NodeID {
	return slices.Clone(d.order)
}

// take returns the marked roots and leaves the set empty for the marks that
// side effects make while the pass runs.
func (d *dirtySet) take() []ir.NodeID {
	roots := d.order
	d.order = nil
	d.index = make(map[ir.NodeID]struct{})
	return roots
}
