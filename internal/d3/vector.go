package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// R3 vector routines shared by the mesh and grab packages.

func EqualWithin(a, b r3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol &&
		math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.Z-b.Z) <= tol
}

// MinElem return a vector with the minimum components of two vectors.
func MinElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

// MaxElem return a vector with the maximum components of two vectors.
func MaxElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}

// FloorDiv returns floor(v/cell) for each component. It is the cell
// coordinate of v in a uniform grid of cell size cell.
func FloorDiv(v r3.Vec, cell float64) [3]int {
	return [3]int{
		int(math.Floor(v.X / cell)),
		int(math.Floor(v.Y / cell)),
		int(math.Floor(v.Z / cell)),
	}
}

// Centroid returns the mean of the vectors in set. Returns the zero vector
// for an empty set.
func Centroid(set []r3.Vec) r3.Vec {
	if len(set) == 0 {
		return r3.Vec{}
	}
	var sum r3.Vec
	for _, v := range set {
		sum = r3.Add(sum, v)
	}
	return r3.Scale(1/float64(len(set)), sum)
}

// SignedVolume returns the signed volume of tetrahedron (p0,p1,p2,p3).
// Positive when p3 lies on the side of triangle (p0,p1,p2) pointed to by
// its right handed normal.
func SignedVolume(p0, p1, p2, p3 r3.Vec) float64 {
	return r3.Dot(r3.Cross(r3.Sub(p1, p0), r3.Sub(p2, p0)), r3.Sub(p3, p0)) / 6
}

// Clamp x between a and b, assume a <= b
func Clamp(x, a, b float64) float64 {
	return math.Min(b, math.Max(x, a))
}
