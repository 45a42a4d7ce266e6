// Package grab implements interactive grab deformation of tetrahedral meshes.
//
// A grab starts with a set of handle vertices. Vertices reachable from the
// handles within a radius are solved for every frame while a ring of boundary
// vertices just outside the radius is held fixed, so the edit stays local to
// the handles regardless of the mesh size.
package grab

import (
	"fmt"
	"log/slog"

	"github.com/soypat/tetgrab"
	"github.com/soypat/tetgrab/internal/d3"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// State of a Grabber.
type State int

const (
	Idle State = iota
	Grabbing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Grabbing:
		return "grabbing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Grabber drives grab gestures on a host mesh. A gesture is BeginGrab
// followed by any number of UpdateGrab calls and ended by ConfirmGrab or
// CancelGrab. Grabber is not safe for concurrent use.
type Grabber struct {
	mesh tetgrab.Mesh
	cfg  Config
	log  *slog.Logger

	state       State
	region      *Region
	solver      Solver
	rest        []tetgrab.Update
	handleRest  []r3.Vec
	handleDepth []float64
	anchor      r3.Vec
	anchorDepth float64
	mouseStart  r2.Vec
	targets     []tetgrab.Update
}

// New returns an idle Grabber for mesh m. A nil logger uses slog.Default.
func New(m tetgrab.Mesh, cfg Config, logger *slog.Logger) (*Grabber, error) {
	if m == nil {
		return nil, tetgrab.ErrMsg("nil mesh")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("grab config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Grabber{mesh: m, cfg: cfg, log: logger}, nil
}

// State returns the gesture state.
func (g *Grabber) State() State { return g.state }

// Region returns the sub-problem of the current grab or nil when idle.
func (g *Grabber) Region() *Region { return g.region }

// Anchor returns the centroid of the grabbed handles at rest and its NDC
// depth at grab start. Both are zero when idle.
func (g *Grabber) Anchor() (anchor r3.Vec, depth float64) { return g.anchor, g.anchorDepth }

// BeginGrab starts a gesture with the given handle vertices. mouseStart is
// the screen position of the cursor when the grab started, displacements
// are measured relative to it. Invalid and repeated handle ids are ignored.
// BeginGrab is a no-op if no valid handles remain or a grab is in progress.
// If the solver cannot be built the grab is not started and the mesh is
// left untouched.
func (g *Grabber) BeginGrab(handles []int, viewProj tetgrab.Projector, mouseStart r2.Vec) error {
	if g.state != Idle {
		g.log.Debug("begin grab ignored", slog.String("state", g.state.String()))
		return nil
	}
	region := DiscoverRegion(g.mesh, handles, g.cfg.Radius)
	if len(region.Handles) == 0 {
		return nil
	}
	solver := newSolver(g.cfg)
	if err := solver.Build(g.mesh, region); err != nil {
		g.log.Warn("grab not started", slog.Int("handles", len(region.Handles)), slog.String("err", err.Error()))
		return err
	}

	g.handleRest = make([]r3.Vec, len(region.Handles))
	g.handleDepth = make([]float64, len(region.Handles))
	for i, h := range region.Handles {
		p := g.mesh.Position(h)
		g.handleRest[i] = p
		g.handleDepth[i] = viewProj.Project(p).Z
	}
	g.anchor = d3.Centroid(g.handleRest)
	g.anchorDepth = viewProj.Project(g.anchor).Z
	g.rest = make([]tetgrab.Update, region.Len())
	for l, v := range region.Vertices {
		g.rest[l] = tetgrab.Update{ID: v, Pos: g.mesh.Position(v)}
	}
	g.targets = make([]tetgrab.Update, len(region.Handles))
	g.mouseStart = mouseStart
	g.region = region
	g.solver = solver
	g.state = Grabbing
	g.log.Debug("begin grab",
		slog.Int("handles", len(region.Handles)),
		slog.Int("active", region.NumActive),
		slog.Int("boundary", region.Len()-region.NumActive),
		slog.Int("tetrahedra", len(region.Tetrahedra)),
		slog.String("solver", g.cfg.Solver.String()),
	)
	return nil
}

// UpdateGrab moves the handles to follow the cursor at mousePos on a
// viewport of size viewportSize (both in pixels) and writes the solved
// region positions to the mesh. Each handle moves parallel to the view plane
// at its own depth. A solver failure skips the frame, leaving the mesh as it
// was, and is returned; the grab stays active. UpdateGrab is a no-op when
// not grabbing. A non positive dt uses the configured timestep.
func (g *Grabber) UpdateGrab(mousePos, viewportSize r2.Vec, viewProj tetgrab.Projector, dt float64) error {
	if g.state != Grabbing {
		return nil
	}
	if !(viewportSize.X > 0 && viewportSize.Y > 0) {
		err := tetgrab.ErrMsg(fmt.Sprintf("bad viewport size %v", viewportSize))
		g.log.Warn("grab frame skipped", slog.String("err", err.Error()))
		return err
	}
	if !(dt > 0) {
		dt = g.cfg.Timestep
	}
	start := g.toNDC(g.mouseStart, viewportSize)
	cur := g.toNDC(mousePos, viewportSize)
	for i, h := range g.region.Handles {
		depth := g.handleDepth[i]
		from := viewProj.Unproject(r3.Vec{X: start.X, Y: start.Y, Z: depth})
		to := viewProj.Unproject(r3.Vec{X: cur.X, Y: cur.Y, Z: depth})
		g.targets[i] = tetgrab.Update{ID: h, Pos: r3.Add(g.handleRest[i], r3.Sub(to, from))}
	}
	updates, err := g.solver.Step(g.targets, dt)
	if err != nil {
		g.log.Warn("grab frame skipped", slog.String("err", err.Error()))
		return fmt.Errorf("grab update: %w", err)
	}
	g.mesh.SetPositions(updates)
	return nil
}

func (g *Grabber) toNDC(p, viewport r2.Vec) r2.Vec {
	ndc := r2.Vec{X: p.X/viewport.X*2 - 1, Y: p.Y/viewport.Y*2 - 1}
	if g.cfg.FlipY {
		ndc.Y = -ndc.Y
	}
	return ndc
}

// ConfirmGrab keeps the current deformation and ends the gesture.
func (g *Grabber) ConfirmGrab() {
	if g.state != Grabbing {
		return
	}
	g.log.Debug("confirm grab", slog.Int("vertices", len(g.rest)))
	g.reset()
}

// CancelGrab restores every vertex touched by the gesture to its position
// at BeginGrab and ends the gesture.
func (g *Grabber) CancelGrab() {
	if g.state != Grabbing {
		return
	}
	g.mesh.SetPositions(g.rest)
	g.log.Debug("cancel grab", slog.Int("vertices", len(g.rest)))
	g.reset()
}

func (g *Grabber) reset() {
	g.state = Idle
	g.region = nil
	g.solver = nil
	g.rest = nil
	g.handleRest = nil
	g.handleDepth = nil
	g.targets = nil
	g.anchor = r3.Vec{}
	g.anchorDepth = 0
	g.mouseStart = r2.Vec{}
}

// MoveSelection translates the selected vertices by delta. It is a no-op
// during a grab. Invalid and repeated ids are ignored.
func (g *Grabber) MoveSelection(sel []int, delta r3.Vec) {
	if g.state != Idle || len(sel) == 0 {
		return
	}
	n := g.mesh.NumVertices()
	seen := make(map[int]bool, len(sel))
	updates := make([]tetgrab.Update, 0, len(sel))
	for _, id := range sel {
		if id < 0 || id >= n || seen[id] {
			continue
		}
		seen[id] = true
		updates = append(updates, tetgrab.Update{ID: id, Pos: r3.Add(g.mesh.Position(id), delta)})
	}
	if len(updates) > 0 {
		g.mesh.SetPositions(updates)
	}
}
