// Package mesh implements a host side tetrahedral mesh stored as flat arrays
// indexed by vertex id, together with lattice mesh generation and surface
// export helpers.
package mesh

import (
	"fmt"

	"github.com/soypat/tetgrab"
	"github.com/soypat/tetgrab/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

var _ tetgrab.Mesh = (*Mesh)(nil)

// Mesh is a tetrahedral mesh with vertex adjacency and vertex to
// tetrahedron incidence derived from the tetrahedron list. Positions are
// mutable, topology is fixed after construction.
type Mesh struct {
	pos    []r3.Vec
	tetras [][4]int
	// adj contains unique vertex indices sharing an edge with each vertex.
	adj [][]int
	// vtets contains indices of tetrahedra incident to each vertex.
	vtets [][]int
}

// New builds a Mesh from node positions and tetrahedra given as 4 node
// indices each. Nodes not referenced by any tetrahedron are kept and have no
// adjacency. The node and tetra slices are copied.
func New(nodes []r3.Vec, tetras [][4]int) (*Mesh, error) {
	m := &Mesh{
		pos:    append([]r3.Vec(nil), nodes...),
		tetras: append([][4]int(nil), tetras...),
		adj:    make([][]int, len(nodes)),
		vtets:  make([][]int, len(nodes)),
	}
	for tetidx, tetra := range tetras {
		for i, n := range tetra {
			if n < 0 || n >= len(nodes) {
				return nil, fmt.Errorf("tetrahedron %d references node %d out of range [0,%d)", tetidx, n, len(nodes))
			}
			for j := 0; j < i; j++ {
				if tetra[j] == n {
					return nil, fmt.Errorf("tetrahedron %d has repeated node %d", tetidx, n)
				}
			}
		}
		for i, n := range tetra {
			if m.vtets[n] == nil {
				m.vtets[n] = make([]int, 0, 4*6)
				m.adj[n] = make([]int, 0, 16)
			}
			m.vtets[n] = append(m.vtets[n], tetidx)
			// Add the tetrahedron's other nodes to adjacency if not present.
			for j := 1; j < 4; j++ {
				m.adj[n] = appendUnique(m.adj[n], tetra[(i+j)%4])
			}
		}
	}
	return m, nil
}

func appendUnique(s []int, v int) []int {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}

func (m *Mesh) NumVertices() int { return len(m.pos) }

func (m *Mesh) NumTetrahedra() int { return len(m.tetras) }

func (m *Mesh) Position(id int) r3.Vec { return m.pos[id] }

// SetPositions writes the updates into the position buffer. Updates with an
// id outside the mesh are ignored.
func (m *Mesh) SetPositions(updates []tetgrab.Update) {
	for _, u := range updates {
		if u.ID < 0 || u.ID >= len(m.pos) {
			continue
		}
		m.pos[u.ID] = u.Pos
	}
}

func (m *Mesh) Adjacent(id int) []int { return m.adj[id] }

func (m *Mesh) IncidentTetrahedra(id int) []int { return m.vtets[id] }

func (m *Mesh) Tetrahedron(tet int) [4]int { return m.tetras[tet] }

// Bounds returns the bounding box of all vertices.
func (m *Mesh) Bounds() r3.Box {
	return r3.Box(d3.BoundingBox(m.pos))
}

// TetraVolume returns the signed volume of tetrahedron tet at the current
// positions.
func (m *Mesh) TetraVolume(tet int) float64 {
	t := m.tetras[tet]
	return d3.SignedVolume(m.pos[t[0]], m.pos[t[1]], m.pos[t[2]], m.pos[t[3]])
}

// Volume returns the sum of signed tetrahedron volumes.
func (m *Mesh) Volume() (vol float64) {
	for i := range m.tetras {
		vol += m.TetraVolume(i)
	}
	return vol
}

// Surface returns the boundary faces of the mesh: triangles used by exactly
// one tetrahedron. Faces are wound so their right handed normal points out
// of the tetrahedron they belong to.
func (m *Mesh) Surface() [][3]int {
	type faceKey [3]int
	type faceUse struct {
		face  [3]int
		count int
	}
	uses := make(map[faceKey]*faceUse, 2*len(m.tetras))
	order := make([]faceKey, 0, 2*len(m.tetras))
	for tetidx, t := range m.tetras {
		faces := [4][3]int{
			{t[0], t[2], t[1]},
			{t[0], t[1], t[3]},
			{t[0], t[3], t[2]},
			{t[1], t[2], t[3]},
		}
		if m.TetraVolume(tetidx) < 0 {
			for i := range faces {
				faces[i][1], faces[i][2] = faces[i][2], faces[i][1]
			}
		}
		for _, f := range faces {
			k := sortedFace(f)
			u, ok := uses[k]
			if !ok {
				u = &faceUse{face: f}
				uses[k] = u
				order = append(order, k)
			}
			u.count++
		}
	}
	surface := make([][3]int, 0, len(order))
	for _, k := range order {
		if u := uses[k]; u.count == 1 {
			surface = append(surface, u.face)
		}
	}
	return surface
}

func sortedFace(f [3]int) [3]int {
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	if f[1] > f[2] {
		f[1], f[2] = f[2], f[1]
	}
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	return f
}
