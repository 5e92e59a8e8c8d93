package schema

import (
	"fmt"
	"slices"
	"strings"
)

// Cycle is a loop of default-selected nested fields.
//
// Expanding the default selection of a model follows every default-selected
// nested field into its target's default selection. A loop would expand
// forever, so such loops are rejected at registration time.
type Cycle struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

type defaultGraph map[string][]string

// DefaultCycles finds loops in the default-selection graph of schemas.
//
// Nodes are models; an edge A -> B exists when A has a default-selected,
// selectable nested field targeting B. Strongly connected components of size
// greater than one, and self-loops, are reported. Output is sorted by path.
func DefaultCycles(schemas []*Schema) []Cycle {
	graph := make(defaultGraph)
	for _, s := range schemas {
		graph[s.Name] = nil
	}
	for _, s := range schemas {
		for _, f := range s.Defaults() {
			if f.Kind.IsNested() {
				graph[s.Name] = append(graph[s.Name], f.Target)
			}
		}
	}

	var cycles []Cycle
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || slices.Contains(graph[scc[0]], scc[0]) {
			path := cyclePath(scc, graph)
			cycles = append(cycles, Cycle{
				Path:    path,
				Message: "default selection cycle: " + strings.Join(path, " -> "),
			})
		}
	}
	slices.SortFunc(cycles, func(a, b Cycle) int {
		return strings.Compare(strings.Join(a.Path, ","), strings.Join(b.Path, ","))
	})
	return cycles
}

// tarjanSCC finds strongly connected components. Nodes are visited in sorted
// order so results are deterministic.
func tarjanSCC(graph defaultGraph) [][]string {
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
			slices.Sort(scc)
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

// cyclePath walks edges inside an SCC from its first node back to itself.
func cyclePath(scc []string, graph defaultGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	path := []string{start}
	visited := map[string]bool{}
	for current := start; ; {
		visited[current] = true
		next := ""
		for _, w := range graph[current] {
			if members[w] && (w == start || !visited[w]) {
				next = w
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

func (c Cycle) String() string {
	return fmt.Sprintf("cycle %v", c.Path)
}
