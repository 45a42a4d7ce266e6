package grab

import (
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// reverseCuthillMcKee returns a permutation of the nodes of the undirected
// graph with adjacency lists nbrs that reduces the bandwidth of its
// adjacency matrix. perm[i] is the node placed at position i.
func reverseCuthillMcKee(nbrs [][]int) (perm []int) {
	n := len(nbrs)
	g := degreeGraph{sorted: make([][]graph.Node, n)}
	byDegree := make([]int, n)
	for i := range nbrs {
		byDegree[i] = i
		adj := slices.Clone(nbrs[i])
		slices.SortFunc(adj, func(a, b int) int {
			if d := len(nbrs[a]) - len(nbrs[b]); d != 0 {
				return d
			}
			return a - b
		})
		g.sorted[i] = make([]graph.Node, len(adj))
		for j, v := range adj {
			g.sorted[i][j] = simple.Node(v)
		}
	}
	slices.SortStableFunc(byDegree, func(a, b int) int { return len(nbrs[a]) - len(nbrs[b]) })

	perm = make([]int, 0, n)
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) { perm = append(perm, int(n.ID())) },
	}
	// Each connected component starts at its lowest degree node.
	for _, start := range byDegree {
		if !bf.Visited(simple.Node(start)) {
			bf.Walk(g, simple.Node(start), nil)
		}
	}
	slices.Reverse(perm)
	return perm
}

// degreeGraph yields neighbors in increasing degree order.
type degreeGraph struct {
	sorted [][]graph.Node
}

func (g degreeGraph) From(id int64) graph.Nodes {
	if len(g.sorted[id]) == 0 {
		return graph.Empty
	}
	return iterator.NewOrderedNodes(g.sorted[id])
}

func (g degreeGraph) Edge(uid, vid int64) graph.Edge {
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}

// bandwidth returns the half bandwidth of the adjacency matrix of nbrs when
// node i is placed at row pos[i].
func bandwidth(nbrs [][]int, pos []int) (k int) {
	for i, adj := range nbrs {
		for _, j := range adj {
			if d := pos[i] - pos[j]; d > k {
				k = d
			} else if -d > k {
				k = -d
			}
		}
	}
	return k
}
