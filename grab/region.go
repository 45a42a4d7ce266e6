package grab

import (
	"github.com/soypat/tetgrab"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
	"gonum.org/v1/gonum/spatial/r3"
)

// Region is the subset of a mesh affected by a grab. Vertices lists active
// vertices (reachable from a handle through vertices within the grab radius)
// followed by boundary vertices (outside the radius but adjacent to an
// active vertex). The position of a vertex in Vertices is its local index.
type Region struct {
	Vertices []int
	// NumActive is the number of active vertices at the start of Vertices.
	NumActive int
	// Handles are the deduplicated, in range handle ids the region grew from.
	Handles []int
	// Tetrahedra lists mesh tetrahedra incident to an active vertex with all
	// four vertices in the region.
	Tetrahedra []int

	local  map[int]int
	handle []bool // indexed by local index.
}

// Len returns the number of vertices in the region.
func (r *Region) Len() int { return len(r.Vertices) }

// Active returns the active vertices of the region.
func (r *Region) Active() []int { return r.Vertices[:r.NumActive] }

// Boundary returns the boundary vertices of the region.
func (r *Region) Boundary() []int { return r.Vertices[r.NumActive:] }

// Local returns the local index of mesh vertex id.
func (r *Region) Local(id int) (int, bool) {
	l, ok := r.local[id]
	return l, ok
}

// IsHandle reports whether the vertex at local index l is a handle.
func (r *Region) IsHandle(l int) bool { return r.handle[l] }

// IsPinned reports whether the vertex at local index l has a prescribed
// position during a solve, which is the case for handles and boundary vertices.
func (r *Region) IsPinned(l int) bool { return r.handle[l] || l >= r.NumActive }

// DiscoverRegion grows the grab region from handles. A vertex joins the
// active set when it is reached through edges from a handle and lies strictly
// within radius of some handle. The first vertex outside the radius along a
// path becomes a boundary vertex and is not expanded. Handles are always
// active. Handle ids out of range are ignored, as are duplicates.
func DiscoverRegion(m tetgrab.Mesh, handles []int, radius float64) *Region {
	r := &Region{local: make(map[int]int)}
	n := m.NumVertices()
	isHandle := make(map[int64]bool, len(handles))
	var handlePos []r3.Vec
	for _, h := range handles {
		if h < 0 || h >= n || isHandle[int64(h)] {
			continue
		}
		isHandle[int64(h)] = true
		r.Handles = append(r.Handles, h)
		handlePos = append(handlePos, m.Position(h))
	}
	if len(r.Handles) == 0 {
		return r
	}
	grid := NewHandleGrid(radius, handlePos)

	var (
		boundary   []int
		isBoundary = make(map[int64]bool)
		bf         traverse.BreadthFirst
	)
	bf.Visit = func(n graph.Node) {
		r.Vertices = append(r.Vertices, int(n.ID()))
	}
	bf.Traverse = func(e graph.Edge) bool {
		to := e.To()
		id := to.ID()
		switch {
		case bf.Visited(to) || isHandle[id]:
			return true
		case isBoundary[id]:
			return false
		case grid.Near(m.Position(int(id))):
			return true
		}
		isBoundary[id] = true
		boundary = append(boundary, int(id))
		return false
	}
	g := meshGraph{m: m}
	for _, h := range r.Handles {
		bf.Walk(g, simple.Node(h), nil)
	}
	r.NumActive = len(r.Vertices)
	r.Vertices = append(r.Vertices, boundary...)

	r.handle = make([]bool, len(r.Vertices))
	for i, v := range r.Vertices {
		r.local[v] = i
		r.handle[i] = isHandle[int64(v)]
	}

	seen := make(map[int]bool)
	for _, v := range r.Active() {
		for _, tet := range m.IncidentTetrahedra(v) {
			if seen[tet] {
				continue
			}
			seen[tet] = true
			inside := true
			for _, tv := range m.Tetrahedron(tet) {
				if _, ok := r.local[tv]; !ok {
					inside = false
					break
				}
			}
			if inside {
				r.Tetrahedra = append(r.Tetrahedra, tet)
			}
		}
	}
	return r
}

// meshGraph exposes the edge graph of a mesh to gonum graph traversals.
type meshGraph struct {
	m tetgrab.Mesh
}

var _ traverse.Graph = meshGraph{}

func (g meshGraph) From(id int64) graph.Nodes {
	adj := g.m.Adjacent(int(id))
	if len(adj) == 0 {
		return graph.Empty
	}
	nodes := make([]graph.Node, len(adj))
	for i, v := range adj {
		nodes[i] = simple.Node(v)
	}
	return iterator.NewOrderedNodes(nodes)
}

func (g meshGraph) Edge(uid, vid int64) graph.Edge {
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}
