// Package tetgrab declares the interfaces shared between a host application
// that owns a tetrahedral mesh and the interactive deformation engine in
// package grab.
package tetgrab

import (
	"fmt"
	"runtime"

	"github.com/soypat/tetgrab/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Update is a new position for the vertex with global id ID.
type Update struct {
	ID  int
	Pos r3.Vec
}

// Mesh is the host owned tetrahedral mesh. Vertex ids are dense integers in
// [0, NumVertices()). The deformation engine only reads topology and writes
// positions through SetPositions.
type Mesh interface {
	NumVertices() int
	// Position returns the current position of vertex id.
	Position(id int) r3.Vec
	// SetPositions writes a batch of vertex positions.
	SetPositions(updates []Update)
	// Adjacent returns the ids of vertices sharing a tetrahedron edge with id.
	// The returned slice must not be modified.
	Adjacent(id int) []int
	// IncidentTetrahedra returns the indices of tetrahedra using vertex id.
	// The returned slice must not be modified.
	IncidentTetrahedra(id int) []int
	// Tetrahedron returns the 4 vertex ids of tetrahedron tet.
	Tetrahedron(tet int) [4]int
}

// Projector maps between world space and normalized device coordinates
// (NDC, the [-1,1] clip cube after perspective divide).
type Projector interface {
	Project(world r3.Vec) (ndc r3.Vec)
	Unproject(ndc r3.Vec) (world r3.Vec)
}

type viewProjection struct {
	fwd, inv d3.Transform
}

var _ Projector = viewProjection{}

// NewViewProjection returns a Projector for the 4x4 view-projection matrix
// given in row major order. It panics if len(rowMajor) != 16.
func NewViewProjection(rowMajor []float64) Projector {
	t := d3.NewTransform(rowMajor)
	return viewProjection{fwd: t, inv: t.Inv()}
}

// LookAtPerspective returns the Projector of a perspective camera at eye
// looking at center. fovy is the vertical field of view in degrees.
func LookAtPerspective(eye, center, up r3.Vec, fovy, aspect, near, far float64) Projector {
	t := d3.Perspective(fovy, aspect, near, far).Mul(d3.LookAt(eye, center, up))
	return viewProjection{fwd: t, inv: t.Inv()}
}

func (vp viewProjection) Project(world r3.Vec) r3.Vec { return vp.fwd.Transform(world) }

func (vp viewProjection) Unproject(ndc r3.Vec) r3.Vec { return vp.inv.Transform(ndc) }

// ErrMsg returns an error with a message function name and line number.
func ErrMsg(msg string) error {
	pc, _, line, ok := runtime.Caller(1)
	if !ok {
		return fmt.Errorf("?: %s", msg)
	}
	fn := runtime.FuncForPC(pc)
	return fmt.Errorf("%s line %d: %s", fn.Name(), line, msg)
}
