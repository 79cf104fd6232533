// Package dag maintains the column dependency graph: which columns a
// formula or merge column reads from, and which columns feed enrichment
// inputs. It detects reference cycles and produces the evaluation order.
package dag

import (
	"fmt"
	"sort"
)

// Graph is a directed graph of column IDs. An edge A -> B means B
// depends on A (B references A's value).
type Graph struct {
	names    map[string]string   // id -> display name
	children map[string][]string // id -> ids that depend on it
	parents  map[string][]string // id -> ids it depends on
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		names:    make(map[string]string),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// AddColumn registers a column node. Adding the same id twice updates
// the display name only.
func (g *Graph) AddColumn(id, name string) {
	if _, exists := g.names[id]; !exists {
		g.children[id] = nil
		g.parents[id] = nil
	}
	g.names[id] = name
}

// AddDependency records that dependent reads from source. Both nodes
// must exist. A self-reference is recorded as a one-node cycle.
func (g *Graph) AddDependency(source, dependent string) error {
	if _, ok := g.names[source]; !ok {
		return fmt.Errorf("unknown column %q", source)
	}
	if _, ok := g.names[dependent]; !ok {
		return fmt.Errorf("unknown column %q", dependent)
	}
	for _, c := range g.children[source] {
		if c == dependent {
			return nil
		}
	}
	g.children[source] = append(g.children[source], dependent)
	g.parents[dependent] = append(g.parents[dependent], source)
	return nil
}

// Name returns the display name registered for a column id.
func (g *Graph) Name(id string) string {
	return g.names[id]
}

// Parents returns the direct dependencies of a column.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// Dependents returns every column that transitively depends on id.
func (g *Graph) Dependents(id string) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(string)
	walk = func(n string) {
		for _, c := range g.children[n] {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
				walk(c)
			}
		}
	}
	walk(id)
	return out
}

// HasCycle reports whether the graph contains a reference cycle. When it
// does, the returned path holds the column names along the cycle,
// starting and ending at the same column.
func (g *Graph) HasCycle() (bool, []string) {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS stack
		black = 2 // fully explored
	)
	color := make(map[string]int, len(g.names))
	parent := make(map[string]string)

	var cycleStart, cycleEnd string
	var dfs func(string) bool
	dfs = func(n string) bool {
		color[n] = gray
		for _, c := range g.children[n] {
			if color[c] == white {
				parent[c] = n
				if dfs(c) {
					return true
				}
			} else if color[c] == gray {
				cycleStart, cycleEnd = c, n
				return true
			}
		}
		color[n] = black
		return false
	}

	for _, id := range g.sortedIDs() {
		if color[id] == white && dfs(id) {
			// Walk parent links back from the closing edge to
			// reconstruct the cycle, then render it forward.
			var ids []string
			for n := cycleEnd; n != cycleStart; n = parent[n] {
				ids = append(ids, n)
			}
			path := []string{g.names[cycleStart]}
			for i := len(ids) - 1; i >= 0; i-- {
				path = append(path, g.names[ids[i]])
			}
			path = append(path, g.names[cycleStart])
			return true, path
		}
	}
	return false, nil
}

// TopologicalOrder returns the column ids ordered so every column comes
// after everything it depends on. Returns an error when a cycle exists.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if ok, path := g.HasCycle(); ok {
		return nil, fmt.Errorf("circular reference (%s)", JoinPath(path))
	}

	inDegree := make(map[string]int, len(g.names))
	for id := range g.names {
		inDegree[id] = len(g.parents[id])
	}

	var queue []string
	for _, id := range g.sortedIDs() {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	out := make([]string, 0, len(g.names))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		for _, c := range g.children[n] {
			inDegree[c]--
			if inDegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}
	return out, nil
}

// OnCycle returns the set of column ids that sit on, or downstream of, a
// reference cycle. These columns cannot be evaluated.
func (g *Graph) OnCycle() map[string]bool {
	// Peel zero-in-degree nodes; whatever remains is on a cycle or
	// downstream of one.
	inDegree := make(map[string]int, len(g.names))
	for id := range g.names {
		inDegree[id] = len(g.parents[id])
	}
	var queue []string
	for id, d := range inDegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	resolved := make(map[string]bool, len(g.names))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		resolved[n] = true
		for _, c := range g.children[n] {
			inDegree[c]--
			if inDegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	tainted := make(map[string]bool)
	for id := range g.names {
		if !resolved[id] {
			tainted[id] = true
		}
	}
	return tainted
}

// NodeCount returns the number of registered columns.
func (g *Graph) NodeCount() int {
	return len(g.names)
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.names))
	for id := range g.names {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// JoinPath renders a cycle path as "A -> B -> A".
func JoinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += " -> "
		}
		out += p
	}
	return out
}
