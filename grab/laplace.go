package grab

import (
	"fmt"
	"slices"

	"github.com/soypat/tetgrab"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Laplacian solves the graph Laplacian system of a grab region. Pinned
// vertices (handles and boundary) have identity rows and keep their
// prescribed position. Each free vertex i satisfies
//
//	deg(i)*x_i - Σ x_j = δ_i
//
// over its region neighbors j, where δ_i is the Laplacian of the rest
// positions when PreserveDetail is set and zero otherwise.
//
// Pinned rows are eliminated so only the free block, which is symmetric
// positive definite, is factorized. Free vertices are permuted with reverse
// Cuthill-McKee to keep the band of the factor narrow.
type Laplacian struct {
	PreserveDetail bool

	region *Region
	rest   []r3.Vec
	// free[b] is the local index of the free vertex at band row b.
	free []int
	// pinnedNbrs[b] lists pinned local neighbors of band row b.
	pinnedNbrs [][]int
	detail     []r3.Vec
	chol       mat.BandCholesky
	rhs, sol   *mat.Dense
}

var _ Solver = (*Laplacian)(nil)

func (s *Laplacian) Build(m tetgrab.Mesh, region *Region) error {
	s.region = nil
	s.rest = restPositions(m, region)
	n := region.Len()

	// Region local neighbors of each vertex.
	nbrs := make([][]int, n)
	for l, v := range region.Vertices {
		for _, u := range m.Adjacent(v) {
			if ul, ok := region.Local(u); ok && ul != l {
				nbrs[l] = append(nbrs[l], ul)
			}
		}
	}

	// Free subgraph, numbered by order of appearance.
	freeIdx := make([]int, n)
	var freeLocal []int
	for l := 0; l < n; l++ {
		freeIdx[l] = -1
		if !region.IsPinned(l) {
			freeIdx[l] = len(freeLocal)
			freeLocal = append(freeLocal, l)
		}
	}
	nf := len(freeLocal)
	freeNbrs := make([][]int, nf)
	for f, l := range freeLocal {
		for _, ul := range nbrs[l] {
			if uf := freeIdx[ul]; uf >= 0 {
				freeNbrs[f] = append(freeNbrs[f], uf)
			}
		}
	}
	// Adjacency given by the host may be one sided, mirror it.
	for f := range freeNbrs {
		for _, uf := range freeNbrs[f] {
			if !slices.Contains(freeNbrs[uf], f) {
				freeNbrs[uf] = append(freeNbrs[uf], f)
			}
		}
	}

	perm := reverseCuthillMcKee(freeNbrs)
	row := make([]int, nf)
	for b, f := range perm {
		row[f] = b
	}
	s.free = make([]int, nf)
	s.pinnedNbrs = make([][]int, nf)
	s.detail = make([]r3.Vec, nf)
	for b, f := range perm {
		l := freeLocal[f]
		s.free[b] = l
		for _, ul := range nbrs[l] {
			if region.IsPinned(ul) {
				s.pinnedNbrs[b] = append(s.pinnedNbrs[b], ul)
			}
		}
		if !s.PreserveDetail {
			continue
		}
		deg := len(freeNbrs[f]) + len(s.pinnedNbrs[b])
		lap := r3.Scale(float64(deg), s.rest[l])
		for _, uf := range freeNbrs[f] {
			lap = r3.Sub(lap, s.rest[freeLocal[uf]])
		}
		for _, pl := range s.pinnedNbrs[b] {
			lap = r3.Sub(lap, s.rest[pl])
		}
		s.detail[b] = lap
	}
	if nf == 0 {
		s.region = region
		return nil
	}

	k := bandwidth(freeNbrs, row)
	a := mat.NewSymBandDense(nf, k, nil)
	for f, adj := range freeNbrs {
		b := row[f]
		a.SetSymBand(b, b, float64(len(adj)+len(s.pinnedNbrs[b])))
		for _, uf := range adj {
			if ub := row[uf]; ub > b {
				a.SetSymBand(b, ub, -1)
			}
		}
	}
	if !s.chol.Factorize(a) {
		return fmt.Errorf("%w: %d free vertices, bandwidth %d", ErrFactorize, nf, k)
	}
	if cond := s.chol.Cond(); cond > mat.ConditionTolerance {
		return fmt.Errorf("%w: condition number %g", ErrFactorize, cond)
	}
	s.rhs = mat.NewDense(nf, 3, nil)
	s.sol = mat.NewDense(nf, 3, nil)
	s.region = region
	return nil
}

func (s *Laplacian) Step(targets []tetgrab.Update, dt float64) ([]tetgrab.Update, error) {
	if s.region == nil {
		return nil, ErrNotBuilt
	}
	pos := pinnedTargets(s.region, s.rest, targets)
	if len(s.free) == 0 {
		return regionUpdates(s.region, pos), nil
	}
	for b := range s.free {
		rhs := s.detail[b]
		for _, pl := range s.pinnedNbrs[b] {
			rhs = r3.Add(rhs, pos[pl])
		}
		s.rhs.Set(b, 0, rhs.X)
		s.rhs.Set(b, 1, rhs.Y)
		s.rhs.Set(b, 2, rhs.Z)
	}
	if err := s.chol.SolveTo(s.sol, s.rhs); err != nil {
		return nil, fmt.Errorf("laplacian solve: %w", err)
	}
	for b, l := range s.free {
		pos[l] = r3.Vec{X: s.sol.At(b, 0), Y: s.sol.At(b, 1), Z: s.sol.At(b, 2)}
	}
	return regionUpdates(s.region, pos), nil
}
