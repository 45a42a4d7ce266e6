package mesh

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"

	"github.com/chewxy/math32"
)

// WriteSTL writes the surface of m (see Mesh.Surface) to w in binary STL
// format using the current vertex positions. Triangles with non finite
// vertices are skipped.
func WriteSTL(w io.Writer, m *Mesh) error {
	surface := m.Surface()
	if len(surface) == 0 {
		return errors.New("mesh has no surface triangles")
	}
	tris := make([]stlTriangle, 0, len(surface))
	for _, f := range surface {
		var d stlTriangle
		d.Vertex1 = to3F32(m.pos[f[0]].X, m.pos[f[0]].Y, m.pos[f[0]].Z)
		d.Vertex2 = to3F32(m.pos[f[1]].X, m.pos[f[1]].Y, m.pos[f[1]].Z)
		d.Vertex3 = to3F32(m.pos[f[2]].X, m.pos[f[2]].Y, m.pos[f[2]].Z)
		if bad3F32(d.Vertex1) || bad3F32(d.Vertex2) || bad3F32(d.Vertex3) {
			continue
		}
		d.Normal = d.normalFromVertices()
		tris = append(tris, d)
	}
	header := stlHeader{
		Count: uint32(len(tris)), // size of stl triangles is 50
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &header); err != nil {
		return err
	}
	var b [50]byte
	for _, d := range tris {
		d.put(b[:])
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// CreateSTL writes the surface of m to a new file at path.
func CreateSTL(path string, m *Mesh) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	err = WriteSTL(fp, m)
	if cerr := fp.Close(); err == nil {
		err = cerr
	}
	return err
}

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	_       uint16 // Attribute byte count
}

func (t stlTriangle) put(b []byte) {
	if len(b) < 50 {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0)
}

// normalFromVertices returns the unit normal of the triangle or the zero
// vector for degenerate triangles.
func (t stlTriangle) normalFromVertices() [3]float32 {
	e1 := sub3F32(t.Vertex2, t.Vertex1)
	e2 := sub3F32(t.Vertex3, t.Vertex1)
	n := [3]float32{
		e1[1]*e2[2] - e1[2]*e2[1],
		e1[2]*e2[0] - e1[0]*e2[2],
		e1[0]*e2[1] - e1[1]*e2[0],
	}
	norm := math32.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if norm == 0 {
		return [3]float32{}
	}
	return [3]float32{n[0] / norm, n[1] / norm, n[2] / norm}
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func to3F32(x, y, z float64) [3]float32 {
	return [3]float32{float32(x), float32(y), float32(z)}
}

func sub3F32(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}
