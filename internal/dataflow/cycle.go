package dataflow

import (
	"fmt"
	"slices"
	"strings"
)

// Cycle is a wiring loop between blocks.
type Cycle struct {
	Path    []string `json:"path"` // block IDs: ["b1", "b2", "b1"]
	Message string   `json:"message"`
}

// blockGraph maps block ID to the IDs of blocks fed by it.
type blockGraph map[string][]string

func buildBlockGraph(blocks []*Block, links []Link) blockGraph {
	graph := make(blockGraph, len(blocks))
	for _, b := range blocks {
		graph[b.ID] = nil
	}
	for _, l := range links {
		from := l.From.Block.ID
		graph[from] = append(graph[from], l.To.ID)
	}
	return graph
}

// FindCycles reports every wiring loop in f. Compiled expression DAGs never
// contain one; hand-assembled fragments might. Results are ordered by the
// first block ID of each path.
func FindCycles(f *Fragment) []Cycle {
	graph := buildBlockGraph(f.Blocks(), f.Links())

	var cycles []Cycle
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			path := reconstructCyclePath(scc, graph)
			cycles = append(cycles, Cycle{
				Path:    path,
				Message: fmt.Sprintf("wiring loop: %s", strings.Join(path, " -> ")),
			})
		}
	}
	slices.SortFunc(cycles, func(a, b Cycle) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return cycles
}

func hasSelfLoop(node string, graph blockGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components. Nodes are visited in
// sorted order so results are deterministic.
func tarjanSCC(graph blockGraph) [][]string {
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

// reconstructCyclePath walks edges inside an SCC from its smallest member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph blockGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := slices.Min(scc)
	if len(scc) == 1 {
		return []string{start, start}
	}

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

// TopologicalOrder returns f's blocks so that every block follows the blocks
// feeding it. Ties keep creation order. It fails if f contains a loop.
func TopologicalOrder(f *Fragment) ([]*Block, error) {
	blocks := f.Blocks()
	slices.SortStableFunc(blocks, func(a, b *Block) int {
		return a.seq - b.seq
	})

	indegree := make(map[*Block]int, len(blocks))
	succ := make(map[*Block][]*Block, len(blocks))
	for _, l := range f.Links() {
		indegree[l.To]++
		succ[l.From.Block] = append(succ[l.From.Block], l.To)
	}

	var ready, order []*Block
	for _, b := range blocks {
		if indegree[b] == 0 {
			ready = append(ready, b)
		}
	}
	for len(ready) > 0 {
		b := ready[0]
		ready = ready[1:]
		order = append(order, b)
		for _, s := range succ[b] {
			indegree[s]--
			if indegree[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	if len(order) != len(blocks) {
		cycles := FindCycles(f)
		if len(cycles) > 0 {
			return nil, fmt.Errorf("fragment %q: %s", f.name, cycles[0].Message)
		}
		return nil, fmt.Errorf("fragment %q: links reference blocks outside the fragment", f.name)
	}
	return order, nil
}
