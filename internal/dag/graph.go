package dag

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError reports a dependency cycle found at graph load, before any
// node executes.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Cycle, " -> "))
}

// Graph holds a validated set of nodes. Construction fails on unknown
// dependencies, duplicate names, and cycles, so a built Graph is always
// executable.
type Graph struct {
	nodes map[string]*Node
	order []string // topological, ties broken by name for determinism
}

// NewGraph validates the node set and computes a topological order.
func NewGraph(nodes []*Node) (*Graph, error) {
	byName := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		if n == nil || n.Name == "" {
			return nil, fmt.Errorf("node with empty name")
		}
		if n.Compute == nil {
			return nil, fmt.Errorf("node %s: compute function is required", n.Name)
		}
		if n.Materialization == MaterializationTable && n.Persist == nil {
			return nil, fmt.Errorf("node %s: table materialization requires a persist function", n.Name)
		}
		if _, exists := byName[n.Name]; exists {
			return nil, fmt.Errorf("duplicate node name %s", n.Name)
		}
		byName[n.Name] = n
	}

	for _, n := range byName {
		for _, dep := range n.DependsOn {
			if _, exists := byName[dep]; !exists {
				return nil, fmt.Errorf("node %s depends on unknown node %s", n.Name, dep)
			}
		}
	}

	order, err := topoSort(byName)
	if err != nil {
		return nil, err
	}

	return &Graph{nodes: byName, order: order}, nil
}

// Node returns the named node, or nil.
func (g *Graph) Node(name string) *Node {
	return g.nodes[name]
}

// Order returns the full topological order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Select returns the topological order restricted to the target nodes
// and all their ancestors. An empty target set selects the whole graph.
func (g *Graph) Select(targets []string) ([]string, error) {
	if len(targets) == 0 {
		return g.Order(), nil
	}

	selected := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if selected[name] {
			return nil
		}
		node, exists := g.nodes[name]
		if !exists {
			return fmt.Errorf("unknown target node %s", name)
		}
		selected[name] = true
		for _, dep := range node.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, target := range targets {
		if err := visit(target); err != nil {
			return nil, err
		}
	}

	var order []string
	for _, name := range g.order {
		if selected[name] {
			order = append(order, name)
		}
	}
	return order, nil
}

// Dependents returns the direct dependents of a node, sorted by name.
func (g *Graph) Dependents(name string) []string {
	var out []string
	for _, n := range g.nodes {
		for _, dep := range n.DependsOn {
			if dep == name {
				out = append(out, n.Name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// topoSort runs Kahn's algorithm. Ready nodes are processed in name
// order so the result is stable across runs.
func topoSort(nodes map[string]*Node) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for name, n := range nodes {
		indegree[name] += 0
		for _, dep := range n.DependsOn {
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		var unlocked []string
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				unlocked = append(unlocked, dep)
			}
		}
		sort.Strings(unlocked)
		ready = mergeSorted(ready, unlocked)
	}

	if len(order) != len(nodes) {
		return nil, &CycleError{Cycle: findCycle(nodes, order)}
	}
	return order, nil
}

func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// findCycle walks the unsorted remainder to name one concrete cycle for
// the error message.
func findCycle(nodes map[string]*Node, sorted []string) []string {
	done := make(map[string]bool, len(sorted))
	for _, name := range sorted {
		done[name] = true
	}

	var remaining []string
	for name := range nodes {
		if !done[name] {
			remaining = append(remaining, name)
		}
	}
	sort.Strings(remaining)

	// Walk dependency edges until a node repeats.
	seen := make(map[string]int)
	var path []string
	current := remaining[0]
	for {
		if idx, visited := seen[current]; visited {
			cycle := append([]string{}, path[idx:]...)
			return append(cycle, current)
		}
		seen[current] = len(path)
		path = append(path, current)

		next := ""
		for _, dep := range nodes[current].DependsOn {
			if !done[dep] {
				next = dep
				break
			}
		}
		current = next
	}
}
