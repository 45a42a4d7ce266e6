package mesh

import (
	"math"

	"github.com/soypat/tetgrab/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// BCC constructs a body centered cubic tetrahedral lattice filling box b.
// Inspired by Tetrahedral Mesh Generation for Deformable Bodies
// Molino, Bridson, Fedkiw.
//
// The box is divided into cubic cells of side close to resolution. Every
// tetrahedron joins the centers of two face sharing cells with one edge of
// the shared face, which yields an isotropic mesh. If keep is not nil only
// tetrahedra for which keep(centroid) returns true are emitted. Unreferenced
// nodes are dropped and all tetrahedra have positive signed volume.
func BCC(b r3.Box, resolution float64, keep func(centroid r3.Vec) bool) (nodes []r3.Vec, tetras [][4]int) {
	sz := d3.Box(b).Size()
	div := [3]int{
		int(math.Ceil(sz.X / resolution)),
		int(math.Ceil(sz.Y / resolution)),
		int(math.Ceil(sz.Z / resolution)),
	}
	if div[0] < 1 || div[1] < 1 || div[2] < 1 {
		panic("resolution too low")
	}
	lat := bccLattice{min: b.Min, div: div}
	lat.cell = r3.Vec{X: sz.X / float64(div[0]), Y: sz.Y / float64(div[1]), Z: sz.Z / float64(div[2])}
	nodes = lat.nodes()
	tetras = make([][4]int, 0, 12*div[0]*div[1]*div[2])
	emit := func(ca, cb int, ring [4]int) {
		for e := 0; e < 4; e++ {
			tetra := [4]int{ca, ring[e], ring[(e+1)%4], cb}
			p := [4]r3.Vec{nodes[tetra[0]], nodes[tetra[1]], nodes[tetra[2]], nodes[tetra[3]]}
			if keep != nil && !keep(d3.Centroid(p[:])) {
				continue
			}
			if d3.SignedVolume(p[0], p[1], p[2], p[3]) < 0 {
				tetra[1], tetra[2] = tetra[2], tetra[1]
			}
			tetras = append(tetras, tetra)
		}
	}
	nx, ny, nz := div[0], div[1], div[2]
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				ctr := lat.center(i, j, k)
				// Mesh faces shared with minor neighbors so each face is visited once.
				if i > 0 {
					emit(ctr, lat.center(i-1, j, k), [4]int{
						lat.corner(i, j, k), lat.corner(i, j+1, k), lat.corner(i, j+1, k+1), lat.corner(i, j, k+1),
					})
				}
				if j > 0 {
					emit(ctr, lat.center(i, j-1, k), [4]int{
						lat.corner(i, j, k), lat.corner(i+1, j, k), lat.corner(i+1, j, k+1), lat.corner(i, j, k+1),
					})
				}
				if k > 0 {
					emit(ctr, lat.center(i, j, k-1), [4]int{
						lat.corner(i, j, k), lat.corner(i+1, j, k), lat.corner(i+1, j+1, k), lat.corner(i, j+1, k),
					})
				}
			}
		}
	}
	return compact(nodes, tetras)
}

type bccLattice struct {
	min  r3.Vec
	cell r3.Vec
	div  [3]int
}

func (l bccLattice) numCorners() int {
	return (l.div[0] + 1) * (l.div[1] + 1) * (l.div[2] + 1)
}

func (l bccLattice) corner(i, j, k int) int {
	return (i*(l.div[1]+1)+j)*(l.div[2]+1) + k
}

func (l bccLattice) center(i, j, k int) int {
	return l.numCorners() + (i*l.div[1]+j)*l.div[2] + k
}

func (l bccLattice) nodes() []r3.Vec {
	nodes := make([]r3.Vec, l.numCorners()+l.div[0]*l.div[1]*l.div[2])
	for i := 0; i <= l.div[0]; i++ {
		for j := 0; j <= l.div[1]; j++ {
			for k := 0; k <= l.div[2]; k++ {
				nodes[l.corner(i, j, k)] = l.at(float64(i), float64(j), float64(k))
			}
		}
	}
	for i := 0; i < l.div[0]; i++ {
		for j := 0; j < l.div[1]; j++ {
			for k := 0; k < l.div[2]; k++ {
				nodes[l.center(i, j, k)] = l.at(float64(i)+0.5, float64(j)+0.5, float64(k)+0.5)
			}
		}
	}
	return nodes
}

func (l bccLattice) at(i, j, k float64) r3.Vec {
	return r3.Vec{
		X: l.min.X + i*l.cell.X,
		Y: l.min.Y + j*l.cell.Y,
		Z: l.min.Z + k*l.cell.Z,
	}
}

// compact removes nodes not referenced by any tetrahedron and renumbers
// tetrahedra accordingly.
func compact(nodes []r3.Vec, tetras [][4]int) ([]r3.Vec, [][4]int) {
	remap := make([]int, len(nodes))
	for i := range remap {
		remap[i] = -1
	}
	used := make([]r3.Vec, 0, len(nodes))
	for ti := range tetras {
		for i, n := range tetras[ti] {
			if remap[n] < 0 {
				remap[n] = len(used)
				used = append(used, nodes[n])
			}
			tetras[ti][i] = remap[n]
		}
	}
	return used, tetras
}
