package d3

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform represents a 4x4 homogeneous transformation such as a camera
// view-projection. The zero value of Transform is the identity transform.
type Transform struct {
	// in order to make the zero value of Transform represent the identity
	// transform we store it with the identity matrix subtracted from the
	// row major elements, so d[0], d[5], d[10], d[15] hold x00-1, x11-1,
	// x22-1 and x33-1. We can then check for identity with
	//  if T == (Transform{})
	d [16]float64
}

// zeroTransform is the Transform that returns zeroTransform when multiplied by any Transform.
var zeroTransform = Transform{d: [16]float64{0: -1, 5: -1, 10: -1, 15: -1}}

// NewTransform returns a new Transform type and populates its elements
// with values passed in row-major form. If val is nil then NewTransform
// returns a Transform filled with zeros.
func NewTransform(a []float64) Transform {
	if a == nil {
		return zeroTransform
	}
	if len(a) != 16 {
		panic("Transform is initialized with 16 values")
	}
	var t Transform
	copy(t.d[:], a)
	for i := 0; i < 16; i += 5 {
		t.d[i]--
	}
	return t
}

// at returns the element at row i, column j.
func (t Transform) at(i, j int) float64 {
	v := t.d[4*i+j]
	if i == j {
		v++
	}
	return v
}

// SliceCopy returns a copy of the Transform's data
// in row major storage format. It returns 16 elements.
func (t Transform) SliceCopy() []float64 {
	s := make([]float64, 16)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			s[4*i+j] = t.at(i, j)
		}
	}
	return s
}

// Transform applies the Transform to the argument point and returns the
// result after the perspective divide. If the homogeneous coordinate
// vanishes the divide is skipped.
func (t Transform) Transform(v r3.Vec) r3.Vec {
	p, w := t.TransformW(v)
	if w == 0 {
		return p
	}
	return r3.Scale(1/w, p)
}

// TransformW applies the Transform to point v (w=1) and returns the
// homogeneous result without perspective divide.
func (t Transform) TransformW(v r3.Vec) (p r3.Vec, w float64) {
	p.X = t.at(0, 0)*v.X + t.at(0, 1)*v.Y + t.at(0, 2)*v.Z + t.at(0, 3)
	p.Y = t.at(1, 0)*v.X + t.at(1, 1)*v.Y + t.at(1, 2)*v.Z + t.at(1, 3)
	p.Z = t.at(2, 0)*v.X + t.at(2, 1)*v.Y + t.at(2, 2)*v.Z + t.at(2, 3)
	w = t.at(3, 0)*v.X + t.at(3, 1)*v.Y + t.at(3, 2)*v.Z + t.at(3, 3)
	return p, w
}

// Mul multiplies the Transforms a and b and returns the result.
// This is the equivalent of combining two transforms in one, b is applied first.
func (t Transform) Mul(b Transform) Transform {
	if t == (Transform{}) {
		return b
	}
	if b == (Transform{}) {
		return t
	}
	var m [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += t.at(i, k) * b.at(k, j)
			}
			m[4*i+j] = sum
		}
	}
	return NewTransform(m[:])
}

// Inv returns the inverse of the transform such that
// t.Inv() * t is the identity Transform.
// If matrix is singular then Inv() returns the zero transform.
func (t Transform) Inv() Transform {
	if t == (Transform{}) {
		return t
	}
	a := mat.NewDense(4, 4, t.SliceCopy())
	var inv mat.Dense
	err := inv.Inverse(a)
	if err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return zeroTransform
		}
		if math.Abs(mat.Det(a)) < 1e-16 {
			return zeroTransform
		}
	}
	return NewTransform(inv.RawMatrix().Data)
}

// equals tests the equality of the Transforms to within a tolerance.
func (t Transform) equals(b Transform, tolerance float64) bool {
	for i := range t.d {
		if math.Abs(t.d[i]-b.d[i]) >= tolerance {
			return false
		}
	}
	return true
}

// Translation returns a transform that translates points by v.
func Translation(v r3.Vec) Transform {
	var t Transform
	t.d[3] = v.X
	t.d[7] = v.Y
	t.d[11] = v.Z
	return t
}

// LookAt returns a right handed view transform of a camera at eye looking
// at center with up direction up. The camera looks down its -Z axis.
func LookAt(eye, center, up r3.Vec) Transform {
	f := r3.Unit(r3.Sub(center, eye))
	s := r3.Unit(r3.Cross(f, up))
	u := r3.Cross(s, f)
	return NewTransform([]float64{
		s.X, s.Y, s.Z, -r3.Dot(s, eye),
		u.X, u.Y, u.Z, -r3.Dot(u, eye),
		-f.X, -f.Y, -f.Z, r3.Dot(f, eye),
		0, 0, 0, 1,
	})
}

// Perspective returns an OpenGL style projection transform mapping the
// view frustum onto the [-1,1] clip cube. fovy is the vertical field of
// view in degrees.
func Perspective(fovy, aspect, near, far float64) Transform {
	f := 1 / math.Tan(fovy*math.Pi/360)
	return NewTransform([]float64{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) / (near - far), 2 * far * near / (near - far),
		0, 0, -1, 0,
	})
}
