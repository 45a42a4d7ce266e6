package d3

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// d3.Box is a 3d bounding box.
type Box r3.Box

// BoundingBox returns the smallest box containing every point of set.
// Returns the zero Box for an empty set.
func BoundingBox(set []r3.Vec) Box {
	if len(set) == 0 {
		return Box{}
	}
	b := Box{Min: set[0], Max: set[0]}
	for _, v := range set[1:] {
		b = b.Include(v)
	}
	return b
}

// Include enlarges a 3d box to include a point.
func (a Box) Include(v r3.Vec) Box {
	return Box{
		Min: MinElem(a.Min, v),
		Max: MaxElem(a.Max, v),
	}
}

// Size returns the size of a 3d box.
func (a Box) Size() r3.Vec {
	return r3.Sub(a.Max, a.Min)
}

// Center returns the center of a 3d box.
func (a Box) Center() r3.Vec {
	return r3.Add(a.Min, r3.Scale(0.5, a.Size()))
}
