package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/animgraph/internal/ir"
)

// CycleWarning represents a loop in a graph definition.
//
// Level "warning" marks an evaluation cycle: derived nodes that read each
// other and fail at run time with EVAL_CYCLE. Level "info" marks a loop that
// only exists in update propagation, for example through an explicit edge
// back into a Value node; each pass visits such a loop once.
type CycleWarning struct {
	Path    []string `json:"path"`    // cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis on a definition.
//
// The algorithm:
//  1. Build the read graph from spec references (node -> nodes reading it)
//  2. Find its strongly connected components with Tarjan's algorithm
//  3. Repeat on the full edge graph, reporting loops not already found
//
// Value and Clock nodes read nothing, so they never sit on an evaluation
// cycle; a propagation loop through one is reported as info.
// An acyclic definition returns an empty list.
func AnalyzeCycles(def *ir.GraphDef) []CycleWarning {
	warnings := []CycleWarning{}
	if def == nil || len(def.Nodes) == 0 {
		return warnings
	}

	names := make(map[ir.NodeID]string, len(def.Nodes))
	kinds := make(map[ir.NodeID]ir.Kind, len(def.Nodes))
	for _, n := range def.Nodes {
		names[n.ID] = nodeName(n)
		if n.Spec != nil {
			kinds[n.ID] = n.Spec.Kind()
		}
	}
	name := func(id ir.NodeID) string {
		if s, ok := names[id]; ok {
			return s
		}
		return fmt.Sprintf("#%d", id)
	}

	reads := make(dependencyGraph)
	for _, n := range def.Nodes {
		reads.addNode(name(n.ID))
		if n.Spec == nil {
			continue
		}
		for _, ref := range n.Spec.Refs() {
			reads.addEdge(name(ref), name(n.ID))
		}
	}

	reported := make(map[string]bool)
	for _, scc := range tarjanSCC(reads) {
		if !isCycle(scc, reads) {
			continue
		}
		reported[sccKey(scc)] = true
		warnings = append(warnings, evalCycleWarning(scc, reads))
	}

	updates := make(dependencyGraph)
	for _, n := range def.Nodes {
		updates.addNode(name(n.ID))
	}
	for _, e := range def.Edges {
		updates.addEdge(name(e.Parent), name(e.Child))
	}

	breakers := make(map[string]bool)
	for id, k := range kinds {
		if k.BreaksCycles() {
			breakers[names[id]] = true
		}
	}
	for _, scc := range tarjanSCC(updates) {
		if !isCycle(scc, updates) || reported[sccKey(scc)] {
			continue
		}
		path := reconstructCyclePath(scc, updates)
		msg := "Update loop: " + strings.Join(path, " → ")
		for _, member := range path {
			if breakers[member] {
				msg += fmt.Sprintf(" (broken by %s)", member)
				break
			}
		}
		warnings = append(warnings, CycleWarning{Path: path, Message: msg, Level: "info"})
	}

	return warnings
}

func nodeName(n ir.NodeDef) string {
	if n.Label != "" {
		return n.Label
	}
	return fmt.Sprintf("#%d", n.ID)
}

// dependencyGraph maps a node name to the nodes its changes reach.
type dependencyGraph map[string][]string

func (g dependencyGraph) addNode(n string) {
	if _, ok := g[n]; !ok {
		g[n] = []string{}
	}
}

func (g dependencyGraph) addEdge(from, to string) {
	g.addNode(to)
	if !slices.Contains(g[from], to) {
		g[from] = append(g[from], to)
	}
}

// isCycle reports whether an SCC is a real cycle: more than one member, or a
// single member with a self-loop.
func isCycle(scc []string, graph dependencyGraph) bool {
	return len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph))
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

func sccKey(scc []string) string {
	sorted := slices.Clone(scc)
	slices.Sort(sorted)
	return strings.Join(sorted, "\x00")
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in name order so the result is deterministic.
//
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func evalCycleWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		n := scc[0]
		return CycleWarning{
			Path:    []string{n, n},
			Message: fmt.Sprintf("Node reads itself: %s → %s", n, n),
			Level:   "warning",
		}
	}
	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: "Evaluation cycle: " + strings.Join(path, " → "),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC, starting at its
// lowest name and following edges to other members until it returns to the
// start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := slices.Min(scc)
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
