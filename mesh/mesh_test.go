package mesh

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/soypat/tetgrab"
	"gonum.org/v1/gonum/spatial/r3"
)

func unitTetra(t testing.TB) *Mesh {
	m, err := New([]r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}}, [][4]int{{0, 1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewSingleTetrahedron(t *testing.T) {
	m := unitTetra(t)
	if m.NumVertices() != 4 || m.NumTetrahedra() != 1 {
		t.Fatalf("got %d vertices, %d tetrahedra", m.NumVertices(), m.NumTetrahedra())
	}
	for v := 0; v < 4; v++ {
		adj := m.Adjacent(v)
		if len(adj) != 3 {
			t.Errorf("vertex %d: want 3 neighbors, got %v", v, adj)
		}
		for _, n := range adj {
			if n == v {
				t.Errorf("vertex %d adjacent to itself", v)
			}
		}
		if inc := m.IncidentTetrahedra(v); len(inc) != 1 || inc[0] != 0 {
			t.Errorf("vertex %d: incident tetrahedra %v", v, inc)
		}
	}
	if got := m.Volume(); math.Abs(got-1./6) > 1e-15 {
		t.Errorf("volume: got %g, want %g", got, 1./6)
	}
}

func TestNewInvalid(t *testing.T) {
	nodes := []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}}
	for _, tetras := range [][][4]int{
		{{0, 1, 2, 4}},
		{{0, 1, 2, -1}},
		{{0, 1, 1, 3}},
	} {
		if _, err := New(nodes, tetras); err == nil {
			t.Errorf("expected error for tetrahedra %v", tetras)
		}
	}
}

func TestSetPositionsIgnoresOutOfRange(t *testing.T) {
	m := unitTetra(t)
	m.SetPositions([]tetgrab.Update{
		{ID: 1, Pos: r3.Vec{X: 2}},
		{ID: 7, Pos: r3.Vec{X: 9}},
		{ID: -1, Pos: r3.Vec{X: 9}},
	})
	if got := m.Position(1); got != (r3.Vec{X: 2}) {
		t.Errorf("vertex 1 not updated: %v", got)
	}
}

func TestSurfaceOrientation(t *testing.T) {
	m := unitTetra(t)
	surf := m.Surface()
	if len(surf) != 4 {
		t.Fatalf("single tetrahedron surface: want 4 faces, got %d", len(surf))
	}
	ctr := r3.Scale(0.25, r3.Vec{X: 1, Y: 1, Z: 1})
	for _, f := range surf {
		a, b, c := m.Position(f[0]), m.Position(f[1]), m.Position(f[2])
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		if r3.Dot(n, r3.Sub(a, ctr)) <= 0 {
			t.Errorf("face %v normal points inward", f)
		}
	}
}

func TestBCC(t *testing.T) {
	const side = 3
	box := r3.Box{Max: r3.Vec{X: side, Y: side, Z: side}}
	nodes, tetras := BCC(box, 1, nil)
	m, err := New(nodes, tetras)
	if err != nil {
		t.Fatal(err)
	}
	// 3 interior faces per axis per 3x3 slab, 4 tetrahedra per face.
	wantTetras := 3 * (side - 1) * side * side * 4
	if m.NumTetrahedra() != wantTetras {
		t.Errorf("want %d tetrahedra, got %d", wantTetras, m.NumTetrahedra())
	}
	for i := 0; i < m.NumTetrahedra(); i++ {
		if v := m.TetraVolume(i); v <= 0 {
			t.Fatalf("tetrahedron %d has non positive volume %g", i, v)
		}
	}
	for v := 0; v < m.NumVertices(); v++ {
		if len(m.Adjacent(v)) == 0 {
			t.Fatalf("vertex %d unreferenced after compaction", v)
		}
		for _, n := range m.Adjacent(v) {
			found := false
			for _, back := range m.Adjacent(n) {
				found = found || back == v
			}
			if !found {
				t.Fatalf("adjacency not symmetric between %d and %d", v, n)
			}
		}
	}
	// Each BCC tetrahedron has volume cell³/12.
	if got, want := m.Volume(), float64(wantTetras)/12; math.Abs(got-want) > 1e-9 {
		t.Errorf("total volume: got %g, want %g", got, want)
	}
}

func TestBCCKeep(t *testing.T) {
	box := r3.Box{Max: r3.Vec{X: 4, Y: 4, Z: 4}}
	all, allTetras := BCC(box, 1, nil)
	half, halfTetras := BCC(box, 1, func(c r3.Vec) bool { return c.Z < 2 })
	if len(halfTetras) == 0 || len(halfTetras) >= len(allTetras) {
		t.Fatalf("filter kept %d of %d tetrahedra", len(halfTetras), len(allTetras))
	}
	if len(half) >= len(all) {
		t.Errorf("filtered mesh kept all %d nodes", len(all))
	}
	for _, n := range half {
		if n.Z > 2.5 {
			t.Errorf("node %v should have been dropped", n)
		}
	}
}

func TestWriteSTL(t *testing.T) {
	m := unitTetra(t)
	var buf bytes.Buffer
	err := WriteSTL(&buf, m)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 84+4*50 {
		t.Fatalf("unexpected STL size %d", buf.Len())
	}
	count := binary.LittleEndian.Uint32(buf.Bytes()[80:84])
	if count != 4 {
		t.Errorf("header triangle count %d", count)
	}
}
