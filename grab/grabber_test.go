package grab

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/soypat/tetgrab"
	"github.com/soypat/tetgrab/internal/d3"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// identityProjector treats world space as NDC.
type identityProjector struct{}

func (identityProjector) Project(p r3.Vec) r3.Vec   { return p }
func (identityProjector) Unproject(p r3.Vec) r3.Vec { return p }

// recordingMesh records the ids written through SetPositions.
type recordingMesh struct {
	tetgrab.Mesh
	writes [][]int
}

func (m *recordingMesh) SetPositions(updates []tetgrab.Update) {
	ids := make([]int, len(updates))
	for i, u := range updates {
		ids[i] = u.ID
	}
	m.writes = append(m.writes, ids)
	m.Mesh.SetPositions(updates)
}

func snapshot(m tetgrab.Mesh) []r3.Vec {
	pos := make([]r3.Vec, m.NumVertices())
	for i := range pos {
		pos[i] = m.Position(i)
	}
	return pos
}

var (
	viewport = r2.Vec{X: 2, Y: 2}
	center   = r2.Vec{X: 1, Y: 1}
)

func newTestGrabber(t testing.TB, m tetgrab.Mesh, cfg Config) *Grabber {
	g, err := New(m, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Radius = 0
	if _, err := New(unitTetra(t), cfg, nil); err == nil {
		t.Error("expected error for zero radius")
	}
	if _, err := New(nil, DefaultConfig(), nil); err == nil {
		t.Error("expected error for nil mesh")
	}
}

func TestGrabberEmptyHandles(t *testing.T) {
	m := &recordingMesh{Mesh: unitTetra(t)}
	g := newTestGrabber(t, m, DefaultConfig())
	for _, handles := range [][]int{nil, {-2, 10}} {
		if err := g.BeginGrab(handles, identityProjector{}, center); err != nil {
			t.Fatal(err)
		}
		if g.State() != Idle || g.Region() != nil {
			t.Fatalf("handles %v: grab started", handles)
		}
	}
	if err := g.UpdateGrab(r2.Vec{X: 2}, viewport, identityProjector{}, 0); err != nil {
		t.Fatal(err)
	}
	g.CancelGrab()
	g.ConfirmGrab()
	if len(m.writes) != 0 {
		t.Errorf("idle grabber wrote to the mesh: %v", m.writes)
	}
}

func TestGrabberStateMachine(t *testing.T) {
	m := barMesh(t)
	g := newTestGrabber(t, m, DefaultConfig())
	if g.State() != Idle || g.State().String() != "idle" {
		t.Fatalf("new grabber state %v", g.State())
	}
	h := nearestVertex(m, r3.Vec{})
	if err := g.BeginGrab([]int{h}, identityProjector{}, center); err != nil {
		t.Fatal(err)
	}
	if g.State() != Grabbing || g.State().String() != "grabbing" {
		t.Fatalf("want grabbing, got %v", g.State())
	}
	region := g.Region()
	anchor, depth := g.Anchor()
	if anchor != m.Position(h) || depth != m.Position(h).Z {
		t.Errorf("anchor %v depth %g for handle at %v", anchor, depth, m.Position(h))
	}

	// A second grab is ignored while the first is active.
	if err := g.BeginGrab([]int{nearestVertex(m, r3.Vec{X: 6})}, identityProjector{}, center); err != nil {
		t.Fatal(err)
	}
	if g.Region() != region {
		t.Fatal("nested BeginGrab replaced the active region")
	}
	if err := g.UpdateGrab(r2.Vec{X: 1.2, Y: 1}, viewport, identityProjector{}, 0); err != nil {
		t.Fatal(err)
	}
	moved := m.Position(h)
	g.ConfirmGrab()
	if g.State() != Idle || g.Region() != nil {
		t.Fatal("confirm did not end the grab")
	}
	if m.Position(h) != moved {
		t.Error("confirm changed the deformation")
	}
	g.ConfirmGrab()
	g.CancelGrab()
	if m.Position(h) != moved {
		t.Error("idle cancel changed the mesh")
	}
}

func TestGrabberDisplacement(t *testing.T) {
	for _, test := range []struct {
		flipY bool
		mouse r2.Vec
		want  r3.Vec
	}{
		{false, r2.Vec{X: 1.2, Y: 1}, r3.Vec{X: 0.2}},
		{false, r2.Vec{X: 1, Y: 0.5}, r3.Vec{Y: -0.5}},
		{true, r2.Vec{X: 1, Y: 0.5}, r3.Vec{Y: 0.5}},
		{true, r2.Vec{X: 0, Y: 2}, r3.Vec{X: -1, Y: -1}},
	} {
		m := barMesh(t)
		cfg := DefaultConfig()
		cfg.Radius = 1.5
		cfg.FlipY = test.flipY
		g := newTestGrabber(t, m, cfg)
		h := nearestVertex(m, r3.Vec{X: 3, Y: 1, Z: 2})
		rest := m.Position(h)
		if err := g.BeginGrab([]int{h}, identityProjector{}, center); err != nil {
			t.Fatal(err)
		}
		if err := g.UpdateGrab(test.mouse, viewport, identityProjector{}, 0); err != nil {
			t.Fatal(err)
		}
		got := r3.Sub(m.Position(h), rest)
		if !d3.EqualWithin(got, test.want, 1e-12) {
			t.Errorf("flipY=%v mouse %v: handle displaced %v, want %v", test.flipY, test.mouse, got, test.want)
		}
	}
}

func TestGrabberPerspectiveDrag(t *testing.T) {
	m := barMesh(t)
	h := nearestVertex(m, r3.Vec{X: 3, Y: 2, Z: 1})
	rest := m.Position(h)
	vp := tetgrab.LookAtPerspective(r3.Vec{X: 3, Y: 1, Z: 10}, r3.Vec{X: 3, Y: 1, Z: 1}, r3.Vec{Y: 1}, 45, 1, 0.1, 100)
	screen := r2.Vec{X: 800, Y: 800}
	ndc := vp.Project(rest)
	start := r2.Vec{X: (ndc.X + 1) / 2 * screen.X, Y: (ndc.Y + 1) / 2 * screen.Y}
	g := newTestGrabber(t, m, DefaultConfig())
	if err := g.BeginGrab([]int{h}, vp, start); err != nil {
		t.Fatal(err)
	}
	// Not moving the mouse leaves the handle in place.
	if err := g.UpdateGrab(start, screen, vp, 0); err != nil {
		t.Fatal(err)
	}
	if !d3.EqualWithin(m.Position(h), rest, 1e-9) {
		t.Fatalf("handle moved to %v without mouse motion", m.Position(h))
	}
	// Dragging right moves the handle along +X at constant depth.
	if err := g.UpdateGrab(r2.Vec{X: start.X + 40, Y: start.Y}, screen, vp, 0); err != nil {
		t.Fatal(err)
	}
	d := r3.Sub(m.Position(h), rest)
	if d.X <= 0 || d.X < 100*(d.Y*d.Y+d.Z*d.Z) {
		t.Errorf("handle displaced %v, want mostly +X", d)
	}
	if got, want := vp.Project(m.Position(h)).Z, ndc.Z; !d3.EqualWithin(r3.Vec{Z: got}, r3.Vec{Z: want}, 1e-9) {
		t.Errorf("handle depth changed from %g to %g", want, got)
	}
}

func TestGrabberCancelRestores(t *testing.T) {
	for _, kind := range []SolverKind{SolverLinear, SolverXPBD} {
		m := barMesh(t)
		before := snapshot(m)
		cfg := DefaultConfig()
		cfg.Solver = kind
		cfg.Radius = 2
		g := newTestGrabber(t, m, cfg)
		handles := []int{nearestVertex(m, r3.Vec{X: 2, Y: 2, Z: 2}), nearestVertex(m, r3.Vec{X: 3, Y: 2, Z: 2})}
		if err := g.BeginGrab(handles, identityProjector{}, center); err != nil {
			t.Fatal(err)
		}
		for i := 1; i <= 5; i++ {
			mouse := r2.Vec{X: 1 + 0.05*float64(i), Y: 1 + 0.1*float64(i)}
			if err := g.UpdateGrab(mouse, viewport, identityProjector{}, 0.016); err != nil {
				t.Fatal(err)
			}
		}
		if m.Position(handles[0]) == before[handles[0]] {
			t.Fatalf("%v: handle did not move", kind)
		}
		g.CancelGrab()
		if g.State() != Idle {
			t.Fatalf("%v: cancel did not end the grab", kind)
		}
		for v, p := range snapshot(m) {
			if p != before[v] {
				t.Errorf("%v: vertex %d at %v after cancel, want %v", kind, v, p, before[v])
			}
		}
	}
}

func TestGrabberLocality(t *testing.T) {
	for _, kind := range []SolverKind{SolverLinear, SolverXPBD} {
		m := &recordingMesh{Mesh: barMesh(t)}
		before := snapshot(m)
		cfg := DefaultConfig()
		cfg.Solver = kind
		cfg.Radius = 1.5
		g := newTestGrabber(t, m, cfg)
		h := nearestVertex(m, r3.Vec{Y: 1, Z: 1})
		if err := g.BeginGrab([]int{h}, identityProjector{}, center); err != nil {
			t.Fatal(err)
		}
		region := g.Region()
		for i := 0; i < 3; i++ {
			if err := g.UpdateGrab(r2.Vec{X: 1.3, Y: 0.9}, viewport, identityProjector{}, 0); err != nil {
				t.Fatal(err)
			}
		}
		if len(m.writes) != 3 {
			t.Fatalf("%v: want one write per frame, got %d", kind, len(m.writes))
		}
		for _, ids := range m.writes {
			for _, id := range ids {
				if _, ok := region.Local(id); !ok {
					t.Errorf("%v: wrote vertex %d outside the region", kind, id)
				}
			}
		}
		for v, p := range snapshot(m) {
			if _, ok := region.Local(v); !ok && p != before[v] {
				t.Errorf("%v: vertex %d outside region moved", kind, v)
			}
		}
		for _, v := range region.Boundary() {
			if p := m.Position(v); p != before[v] {
				t.Errorf("%v: boundary vertex %d moved from %v to %v", kind, v, before[v], p)
			}
		}
		g.ConfirmGrab()
	}
}

func TestGrabberFactorizeFailure(t *testing.T) {
	m := &graphMesh{
		pos: []r3.Vec{{}, {X: 0.1}},
		adj: [][]int{{1}, {}},
	}
	g := newTestGrabber(t, m, DefaultConfig())
	err := g.BeginGrab([]int{0}, identityProjector{}, center)
	if !errors.Is(err, ErrFactorize) {
		t.Fatalf("want ErrFactorize, got %v", err)
	}
	if g.State() != Idle || m.written != 0 {
		t.Errorf("failed grab left state %v and wrote %d positions", g.State(), m.written)
	}
}

func TestGrabberBadViewport(t *testing.T) {
	m := unitTetra(t)
	g := newTestGrabber(t, m, DefaultConfig())
	if err := g.BeginGrab([]int{0}, identityProjector{}, center); err != nil {
		t.Fatal(err)
	}
	before := snapshot(m)
	if err := g.UpdateGrab(center, r2.Vec{}, identityProjector{}, 0); err == nil {
		t.Error("expected error for empty viewport")
	}
	if g.State() != Grabbing {
		t.Error("skipped frame ended the grab")
	}
	for v, p := range snapshot(m) {
		if p != before[v] {
			t.Errorf("vertex %d written on skipped frame", v)
		}
	}
}

func TestMoveSelection(t *testing.T) {
	m := unitTetra(t)
	g := newTestGrabber(t, m, DefaultConfig())
	delta := r3.Vec{X: 1, Y: 2, Z: 3}
	g.MoveSelection([]int{1, 1, 3, 99, -1}, delta)
	if m.Position(1) != (r3.Vec{X: 2, Y: 2, Z: 3}) || m.Position(3) != (r3.Vec{X: 1, Y: 2, Z: 4}) {
		t.Errorf("selection not moved: %v %v", m.Position(1), m.Position(3))
	}
	if m.Position(0) != (r3.Vec{}) || m.Position(2) != (r3.Vec{Y: 1}) {
		t.Error("unselected vertices moved")
	}

	if err := g.BeginGrab([]int{0}, identityProjector{}, center); err != nil {
		t.Fatal(err)
	}
	g.MoveSelection([]int{2}, delta)
	if m.Position(2) != (r3.Vec{Y: 1}) {
		t.Error("selection moved during grab")
	}
}
