package grab

import (
	"math"

	"github.com/soypat/tetgrab/internal/d3"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// HandleGrid is a uniform grid bucketing handle positions with cell size
// equal to the grab radius. It answers whether a point lies within the
// radius of any handle by scanning the 3x3x3 block of cells around the point.
type HandleGrid struct {
	cell  float64
	r2    float64
	cells map[[3]int][]r3.Vec
}

// NewHandleGrid buckets points in a grid of cell size radius. A non positive
// radius yields a grid for which Near always returns false.
func NewHandleGrid(radius float64, points []r3.Vec) *HandleGrid {
	g := &HandleGrid{
		cell:  radius,
		r2:    radius * radius,
		cells: make(map[[3]int][]r3.Vec),
	}
	if !(radius > 0) {
		return g
	}
	for _, p := range points {
		c := d3.FloorDiv(p, radius)
		g.cells[c] = append(g.cells[c], p)
	}
	return g
}

// Near reports whether p lies strictly within the radius of a handle.
func (g *HandleGrid) Near(p r3.Vec) bool {
	if len(g.cells) == 0 {
		return false
	}
	ctr := d3.FloorDiv(p, g.cell)
	for x := -1; x <= 1; x++ {
		for y := -1; y <= 1; y++ {
			for z := -1; z <= 1; z++ {
				for _, h := range g.cells[[3]int{ctr[0] + x, ctr[1] + y, ctr[2] + z}] {
					if r3.Norm2(r3.Sub(p, h)) < g.r2 {
						return true
					}
				}
			}
		}
	}
	return false
}

// handleTree answers distance to the nearest handle.
type handleTree struct {
	tree *kdtree.Tree
}

func newHandleTree(points []r3.Vec) handleTree {
	pts := make(kdtree.Points, len(points))
	for i, p := range points {
		pts[i] = kdtree.Point{p.X, p.Y, p.Z}
	}
	return handleTree{tree: kdtree.New(pts, false)}
}

// Distance returns the euclidean distance from p to the nearest handle, or
// +Inf if there are no handles.
func (h handleTree) Distance(p r3.Vec) float64 {
	if h.tree == nil || h.tree.Root == nil {
		return math.Inf(1)
	}
	_, d2 := h.tree.Nearest(kdtree.Point{p.X, p.Y, p.Z})
	return math.Sqrt(d2)
}
