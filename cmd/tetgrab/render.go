package main

import (
	"errors"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/tetgrab/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const fovy = 30 // vertical field of view in degrees

type viewConfig struct {
	// what position (point) to look at
	lookat r3.Vec
	// which way is up (direction)
	up r3.Vec
	// where the camera/eye located at (point)
	eyepos r3.Vec
	far    float64
	near   float64
}

// defaultView looks at the box from above one of its corners.
func defaultView(bounds d3.Box) viewConfig {
	ctr := bounds.Center()
	diag := r3.Norm(bounds.Size())
	return viewConfig{
		lookat: ctr,
		up:     r3.Vec{Z: 1},
		eyepos: r3.Add(ctr, r3.Scale(diag, r3.Vec{X: 0.6, Y: -1, Z: 0.9})),
		near:   diag / 10,
		far:    diag * 10,
	}
}

// stlToPNG renders an STL file with a Phong shader. The mesh is not refit to
// a bi-unit cube so renders of the same view line up.
func stlToPNG(stlName, outputname string, view viewConfig) error {
	mesh, err := fauxgl.LoadSTL(stlName)
	if err != nil {
		return err
	}
	const scale = 2 // supersampling

	var (
		far    = view.far
		near   = view.near
		eye    = fauxgl.V(view.eyepos.X, view.eyepos.Y, view.eyepos.Z) // camera position
		center = fauxgl.V(view.lookat.X, view.lookat.Y, view.lookat.Z) // view center position
		up     = fauxgl.V(view.up.X, view.up.Y, view.up.Z)             // up vector
		light  = fauxgl.V(-0.75, 1, 0.25).Normalize()                  // light direction
		color  = fauxgl.HexColor("#468966")                            // object color
	)

	context := fauxgl.NewContext(width*scale, height*scale)
	context.ClearColorBufferWith(fauxgl.HexColor("#FFF8E3"))
	aspect := float64(width) / float64(height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(fovy, aspect, near, far)
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = color
	context.Shader = shader
	context.DrawMesh(mesh)
	// downsample image for antialiasing
	image := context.Image()
	image = resize.Resize(uint(width), uint(height), image, resize.Bilinear)
	return fauxgl.SavePNG(outputname, image)
}

// plotDisplacement plots the distance of the handle centroid from its rest
// position against the frame number.
func plotDisplacement(filename string, displacement []float64) error {
	if len(displacement) == 0 {
		return errors.New("no frames to plot")
	}
	xys := make(plotter.XYs, len(displacement))
	for i, d := range displacement {
		xys[i].X = float64(i + 1)
		xys[i].Y = d
	}
	p := plot.New()
	p.Title.Text = "Handle displacement"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "distance"
	p.Add(plotter.NewGrid())
	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	p.Add(line)
	return p.Save(6*vg.Inch, 4*vg.Inch, filename)
}
