// Package graph implements the reactive node graph: a registry of nodes keyed
// by ir.NodeID, an update context holding the logical clock and the ordered
// set of dirty roots, and the pass scheduler that walks from dirty roots to
// sink nodes.
//
// # Memoization
//
// Every node caches its last value together with the loop ID it was computed
// at. A cached value is valid iff that loop ID equals the current clock.
// RunUpdates bumps the clock by exactly one after each pass, which
// invalidates every cache at once; values are recomputed lazily the next
// time a sink reads them.
//
// # Passes
//
// The graph is Idle while the dirty set is empty and Pass-Pending otherwise.
// RunUpdates snapshots the dirty set, clears it, walks children depth-first
// with one shared visited set and calls applyUpdate on each reached sink.
// Marks made during a pass land in the fresh dirty set and run next pass.
//
// A Graph is not safe for concurrent use. The engine package owns a Graph on
// a single goroutine and funnels every external call through its queue.
package graph
