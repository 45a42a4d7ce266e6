// Command tetgrab meshes a box with tetrahedra, drags a patch of its top face
// with a synthetic mouse gesture and writes the result as STL files, PNG
// previews and a plot of the handle displacement per frame.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/soypat/tetgrab"
	"github.com/soypat/tetgrab/grab"
	"github.com/soypat/tetgrab/internal/d3"
	"github.com/soypat/tetgrab/mesh"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// Scale down images relative to Full HD resolution.
	FHDscaler     = 0.4
	width, height = int(1920. * FHDscaler), int(1080. * FHDscaler) // viewport and output size in pixels
)

type params struct {
	outDir     string
	size       r3.Vec  // box dimensions
	resolution float64 // tetrahedron lattice cell size
	frames     int
	drag       r2.Vec // total mouse motion in pixels
	handles    int    // number of pick candidates committed as handles
	cancel     bool
	render     bool
}

func main() {
	var (
		configPath string
		verbose    bool
		p          = params{
			size: r3.Vec{X: 4, Y: 2, Z: 1},
			drag: r2.Vec{Y: 120},
		}
	)
	flag.StringVar(&configPath, "config", "", "YAML grab configuration file")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.StringVar(&p.outDir, "out", ".", "output directory")
	flag.Float64Var(&p.resolution, "res", 0.25, "tetrahedral lattice cell size")
	flag.IntVar(&p.frames, "frames", 30, "number of drag frames")
	flag.IntVar(&p.handles, "handles", 1, "number of vertices nearest to the cursor to grab")
	flag.BoolVar(&p.cancel, "cancel", false, "cancel the grab instead of confirming it")
	flag.BoolVar(&p.render, "png", true, "render PNG previews")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := grab.DefaultConfig()
	if configPath != "" {
		fp, err := os.Open(configPath)
		if err != nil {
			logger.Error("opening config", slog.String("err", err.Error()))
			os.Exit(1)
		}
		cfg, err = grab.LoadConfig(fp)
		fp.Close()
		if err != nil {
			logger.Error("loading config", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}
	if err := run(p, cfg, logger); err != nil {
		logger.Error("tetgrab failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(p params, cfg grab.Config, logger *slog.Logger) error {
	if p.frames <= 0 || p.handles <= 0 {
		return fmt.Errorf("frames and handles must be positive, got %d and %d", p.frames, p.handles)
	}
	if err := os.MkdirAll(p.outDir, 0777); err != nil {
		return err
	}
	nodes, tetras := mesh.BCC(r3.Box{Max: p.size}, p.resolution, nil)
	m, err := mesh.New(nodes, tetras)
	if err != nil {
		return err
	}
	logger.Info("meshed box",
		slog.Int("vertices", m.NumVertices()),
		slog.Int("tetrahedra", m.NumTetrahedra()),
		slog.Float64("volume", m.Volume()),
	)
	bounds := d3.Box(m.Bounds())
	view := defaultView(bounds)
	vp := tetgrab.LookAtPerspective(view.eyepos, view.lookat, view.up, fovy, float64(width)/float64(height), view.near, view.far)
	viewport := r2.Vec{X: float64(width), Y: float64(height)}

	// Cursor starts over the center of the top face.
	top := bounds.Center()
	top.Z = bounds.Max.Z
	cursor := toScreen(vp.Project(top), viewport)
	var sel grab.Selection
	sel.SetCandidates(pickCandidates(m, vp, viewport, cursor))
	for i := 0; i < p.handles; i++ {
		sel.Extend()
		sel.Cycle(1)
	}
	handles := sel.Get()
	if len(handles) > p.handles {
		handles = handles[:p.handles]
	}

	g, err := grab.New(m, cfg, logger)
	if err != nil {
		return err
	}
	if err := g.BeginGrab(handles, vp, cursor); err != nil {
		return err
	}
	region := g.Region()
	if region == nil {
		return fmt.Errorf("no handles picked at %v", cursor)
	}
	logger.Info("grab started",
		slog.Any("handles", region.Handles),
		slog.Int("active", region.NumActive),
		slog.Int("boundary", len(region.Boundary())),
		slog.String("solver", cfg.Solver.String()),
	)
	if err := mesh.CreateSTL(filepath.Join(p.outDir, "before.stl"), m); err != nil {
		return err
	}

	anchor, _ := g.Anchor()
	displacement := make([]float64, 0, p.frames)
	for frame := 1; frame <= p.frames; frame++ {
		t := float64(frame) / float64(p.frames)
		mouse := r2.Add(cursor, r2.Scale(t, p.drag))
		if err := g.UpdateGrab(mouse, viewport, vp, cfg.Timestep); err != nil {
			// Frame skipped, keep dragging.
			continue
		}
		moved := make([]r3.Vec, len(region.Handles))
		for i, h := range region.Handles {
			moved[i] = m.Position(h)
		}
		displacement = append(displacement, r3.Norm(r3.Sub(d3.Centroid(moved), anchor)))
	}
	if p.cancel {
		g.CancelGrab()
	} else {
		g.ConfirmGrab()
	}
	logger.Info("grab finished",
		slog.Bool("cancelled", p.cancel),
		slog.Float64("volume", m.Volume()),
	)

	if err := mesh.CreateSTL(filepath.Join(p.outDir, "after.stl"), m); err != nil {
		return err
	}
	if err := plotDisplacement(filepath.Join(p.outDir, "displacement.png"), displacement); err != nil {
		return err
	}
	if !p.render {
		return nil
	}
	for _, name := range []string{"before", "after"} {
		err := stlToPNG(filepath.Join(p.outDir, name+".stl"), filepath.Join(p.outDir, name+".png"), view)
		if err != nil {
			return err
		}
	}
	return nil
}

// pickCandidates ranks surface vertices by screen distance to cursor.
func pickCandidates(m *mesh.Mesh, vp tetgrab.Projector, viewport, cursor r2.Vec) []int {
	const maxCandidates = 8
	onSurface := make(map[int]bool)
	for _, f := range m.Surface() {
		for _, v := range f {
			onSurface[v] = true
		}
	}
	type candidate struct {
		id   int
		dist float64
	}
	var cands []candidate
	for v := range onSurface {
		ndc := vp.Project(m.Position(v))
		if ndc.Z < -1 || ndc.Z > 1 {
			continue
		}
		cands = append(cands, candidate{id: v, dist: r2.Norm(r2.Sub(toScreen(ndc, viewport), cursor))})
	}
	slices.SortFunc(cands, func(a, b candidate) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		}
		return a.id - b.id
	})
	ranked := make([]int, 0, maxCandidates)
	for i := 0; i < len(cands) && i < maxCandidates; i++ {
		ranked = append(ranked, cands[i].id)
	}
	return ranked
}

// toScreen maps NDC to pixel coordinates of a viewport, the inverse of the
// mapping applied by Grabber.UpdateGrab.
func toScreen(ndc r3.Vec, viewport r2.Vec) r2.Vec {
	return r2.Vec{
		X: (ndc.X + 1) / 2 * viewport.X,
		Y: (ndc.Y + 1) / 2 * viewport.Y,
	}
}
