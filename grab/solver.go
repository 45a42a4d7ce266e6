package grab

import (
	"errors"
	"slices"

	"github.com/soypat/tetgrab"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrFactorize is returned when the linear system of a grab region
	// cannot be factorized.
	ErrFactorize = errors.New("grab: region system not factorizable")
	// ErrNotBuilt is returned by Solver.Step before a successful Build.
	ErrNotBuilt = errors.New("grab: solver not built")
)

// Solver computes new positions for the vertices of a Region given target
// positions for its handles.
type Solver interface {
	// Build precomputes the solver state for region using the current
	// positions of m as rest positions.
	Build(m tetgrab.Mesh, region *Region) error
	// Step returns new positions for every region vertex. Targets whose ID
	// is not a handle of the region are ignored, handles without a target
	// stay at their rest position. dt is the frame time in seconds.
	Step(targets []tetgrab.Update, dt float64) ([]tetgrab.Update, error)
}

func newSolver(cfg Config) Solver {
	if cfg.Solver == SolverXPBD {
		return &XPBD{
			Iterations:        cfg.Iterations,
			Radius:            cfg.Radius,
			ComplianceMin:     cfg.ComplianceMin,
			ComplianceMax:     cfg.ComplianceMax,
			VolumeConstraints: cfg.VolumeConstraints,
			VolumeCompliance:  cfg.VolumeCompliance,
		}
	}
	return &Laplacian{PreserveDetail: cfg.PreserveDetail}
}

// restPositions reads the current position of every region vertex.
func restPositions(m tetgrab.Mesh, region *Region) []r3.Vec {
	rest := make([]r3.Vec, region.Len())
	for l, v := range region.Vertices {
		rest[l] = m.Position(v)
	}
	return rest
}

// pinnedTargets returns the prescribed positions of a region's vertices:
// rest positions overridden by the handle targets.
func pinnedTargets(region *Region, rest []r3.Vec, targets []tetgrab.Update) []r3.Vec {
	pos := slices.Clone(rest)
	for _, t := range targets {
		l, ok := region.Local(t.ID)
		if !ok || !region.IsHandle(l) {
			continue
		}
		pos[l] = t.Pos
	}
	return pos
}

func regionUpdates(region *Region, pos []r3.Vec) []tetgrab.Update {
	updates := make([]tetgrab.Update, len(pos))
	for l, p := range pos {
		updates[l] = tetgrab.Update{ID: region.Vertices[l], Pos: p}
	}
	return updates
}
