package mesh

import (
	"testing"

	"github.com/segmentio/encoding/json"

	"github.com/soypat/dctree/internal/xtree"
	"github.com/soypat/dctree/tape"
	"github.com/soypat/glgl/math/ms3"
)

func leafNode(v ms3.Vec) *xtree.Node {
	return &xtree.Node{State: xtree.Ambiguous, Leaf: &xtree.Leaf{Vertex: v}}
}

func TestVertexIndexInterning(t *testing.T) {
	b := NewPerThreadBRep(0.1)
	n := leafNode(ms3.Vec{X: 1, Y: 2, Z: 3})
	i1 := b.VertexIndex(n)
	i2 := b.VertexIndex(n)
	if i1 != i2 {
		t.Errorf("interning should return the same index, got %d and %d", i1, i2)
	}
	if i1 == 0 {
		t.Error("real vertex should never get the reserved index 0")
	}
}

func TestVertexIndexNilLeafIsSentinel(t *testing.T) {
	b := NewPerThreadBRep(0.1)
	n := &xtree.Node{State: xtree.Empty}
	if got := b.VertexIndex(n); got != 0 {
		t.Errorf("got %d, want 0 for a node with no leaf", got)
	}
}

func TestAddTriangleRejectsDegenerateIndices(t *testing.T) {
	b := NewPerThreadBRep(0.1)
	a := leafNode(ms3.Vec{X: 0, Y: 0, Z: 0})
	c := leafNode(ms3.Vec{X: 1, Y: 0, Z: 0})
	ia, ic := b.VertexIndex(a), b.VertexIndex(c)
	if b.AddTriangle(ia, ia, ic) {
		t.Error("triangle with a repeated index must be rejected")
	}
}

func TestAddTriangleRejectsZeroArea(t *testing.T) {
	b := NewPerThreadBRep(0.1)
	a := leafNode(ms3.Vec{X: 0, Y: 0, Z: 0})
	c := leafNode(ms3.Vec{X: 1, Y: 0, Z: 0})
	d := leafNode(ms3.Vec{X: 2, Y: 0, Z: 0}) // collinear with a,c
	ia, ic, id := b.VertexIndex(a), b.VertexIndex(c), b.VertexIndex(d)
	if b.AddTriangle(ia, ic, id) {
		t.Error("collinear (zero-area) triangle must be rejected")
	}
}

func TestMergeOffsetsIndices(t *testing.T) {
	b1 := NewPerThreadBRep(0.1)
	n1, n2, n3 := leafNode(ms3.Vec{X: 0}), leafNode(ms3.Vec{X: 1}), leafNode(ms3.Vec{X: 0, Y: 1})
	i1, i2, i3 := b1.VertexIndex(n1), b1.VertexIndex(n2), b1.VertexIndex(n3)
	b1.AddTriangle(i1, i2, i3)

	b2 := NewPerThreadBRep(0.1)
	m1, m2, m3 := leafNode(ms3.Vec{X: 5}), leafNode(ms3.Vec{X: 6}), leafNode(ms3.Vec{X: 5, Y: 1})
	j1, j2, j3 := b2.VertexIndex(m1), b2.VertexIndex(m2), b2.VertexIndex(m3)
	b2.AddTriangle(j1, j2, j3)

	merged := Merge([]*PerThreadBRep{b1, b2})
	if len(merged.Triangles) != 2 {
		t.Fatalf("got %d triangles, want 2", len(merged.Triangles))
	}
	if len(merged.Vertices) != 7 { // reserved 0 + 3 + 3
		t.Fatalf("got %d vertices, want 7", len(merged.Vertices))
	}
	second := merged.Triangles[1]
	for _, idx := range second {
		if idx < 4 {
			t.Errorf("second thread's triangle indices should be offset past the first thread's, got %d", idx)
		}
	}
}

func TestLoadEmitsOrientedQuad(t *testing.T) {
	a := leafNode(ms3.Vec{X: 0, Y: 0, Z: 0.1})
	b := leafNode(ms3.Vec{X: 1, Y: 0, Z: 0.1})
	c := leafNode(ms3.Vec{X: 1, Y: 1, Z: 0.1})
	d := leafNode(ms3.Vec{X: 0, Y: 1, Z: 0.1})
	m := &Mesher{Brep: NewPerThreadBRep(0.1), Eval: constGradEvaluator{ms3.Vec{Z: 1}}, MinFeature: 0.1}
	m.Load(AxisZ, [4]*xtree.Node{a, b, c, d})
	if m.Brep.Len() != 2 {
		t.Fatalf("got %d triangles, want 2", m.Brep.Len())
	}
	for _, tr := range m.Brep.tris {
		pa, pb, pc := m.Brep.verts[tr[0]], m.Brep.verts[tr[1]], m.Brep.verts[tr[2]]
		n := ms3.Cross(ms3.Sub(pb, pa), ms3.Sub(pc, pa))
		if ms3.Dot(n, ms3.Vec{Z: 1}) <= 0 {
			t.Errorf("triangle %v not oriented toward +Z gradient", tr)
		}
	}
}

// TestMergeOutputRoundTripsThroughJSON exercises the debug dump used to
// compare a Mesh against a previous run in manual bisection, not a file
// format: it only needs to preserve vertex/triangle data, not be stable
// across versions.
func TestMergeOutputRoundTripsThroughJSON(t *testing.T) {
	b := NewPerThreadBRep(0.1)
	n1, n2, n3 := leafNode(ms3.Vec{X: 0}), leafNode(ms3.Vec{X: 1}), leafNode(ms3.Vec{Y: 1})
	i1, i2, i3 := b.VertexIndex(n1), b.VertexIndex(n2), b.VertexIndex(n3)
	b.AddTriangle(i1, i2, i3)
	want := Merge([]*PerThreadBRep{b})

	data, err := json.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	var got Mesh
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Vertices) != len(want.Vertices) || len(got.Triangles) != len(want.Triangles) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
	if got.Triangles[0] != want.Triangles[0] {
		t.Errorf("got triangle %v, want %v", got.Triangles[0], want.Triangles[0])
	}
}

type constGradEvaluator struct{ g ms3.Vec }

func (e constGradEvaluator) EvalDerivs(*tape.Tape, ms3.Vec) (float32, ms3.Vec, error) {
	return 0, e.g, nil
}
