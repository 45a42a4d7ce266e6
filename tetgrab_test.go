package tetgrab

import (
	"testing"

	"github.com/soypat/tetgrab/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestViewProjectionRoundTrip(t *testing.T) {
	eye, center, up := r3.Vec{X: 3, Y: -4, Z: 5}, r3.Vec{X: 1}, r3.Vec{Z: 1}
	rowMajor := d3.Perspective(40, 16./9, 0.1, 50).Mul(d3.LookAt(eye, center, up)).SliceCopy()
	explicit := NewViewProjection(rowMajor)
	camera := LookAtPerspective(eye, center, up, 40, 16./9, 0.1, 50)
	for _, p := range []r3.Vec{center, {}, {X: 2, Y: 1, Z: 1}, {X: -1, Y: 0.5, Z: 2}} {
		ndc := explicit.Project(p)
		if !d3.EqualWithin(ndc, camera.Project(p), 1e-12) {
			t.Errorf("Project(%v): explicit matrix gives %v, camera gives %v", p, ndc, camera.Project(p))
		}
		if back := explicit.Unproject(ndc); !d3.EqualWithin(back, p, 1e-9) {
			t.Errorf("Unproject(Project(%v)) = %v", p, back)
		}
	}
	if ndc := camera.Project(center); !d3.EqualWithin(r3.Vec{X: ndc.X, Y: ndc.Y}, r3.Vec{}, 1e-12) {
		t.Errorf("view center projects off screen center: %v", ndc)
	}
}

func TestNewViewProjectionBadLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for short matrix")
		}
	}()
	NewViewProjection(make([]float64, 15))
}
