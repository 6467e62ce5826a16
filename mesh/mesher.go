package mesh

import (
	"github.com/soypat/dctree/eval"
	"github.com/soypat/dctree/internal/xtree"
	"github.com/soypat/dctree/tape"
	"github.com/soypat/glgl/math/ms3"
)

// Axis names the direction of the dual edge a Load call is resolving,
// i.e. the axis perpendicular to the shared face the four cells meet at.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Mesher is the dual-contouring variant of Component I: given four cells
// known (by the dual walker) to share a sign-crossing edge, it emits the
// two triangles of the quad connecting their dual vertices.
type Mesher struct {
	Brep       *PerThreadBRep
	Eval       eval.DerivEvaluator
	Tape       *tape.Tape
	MinFeature float32
}

// NewMesher returns a Mesher writing into its own PerThreadBRep, one per
// worker as the dual walk is parallelized across disjoint subtrees
// (spec.md §4.H).
func NewMesher(ev eval.DerivEvaluator, t *tape.Tape, minFeature float32) *Mesher {
	return &Mesher{
		Brep:       NewPerThreadBRep(minFeature),
		Eval:       ev,
		Tape:       t,
		MinFeature: minFeature,
	}
}

// Load emits the quad (as two triangles) for the dual edge along axis,
// shared by the four cells in cells, given in cyclic order around the edge
// in either direction: the triangle winding is chosen from the gradient,
// not from this order. The walker only calls Load
// when it has already established the edge has a sign change; Load does
// not re-check signs.
func (m *Mesher) Load(axis Axis, cells [4]*xtree.Node) {
	v0 := m.Brep.VertexIndex(cells[0])
	v1 := m.Brep.VertexIndex(cells[1])
	v2 := m.Brep.VertexIndex(cells[2])
	v3 := m.Brep.VertexIndex(cells[3])

	mid := edgeMidpoint(cells)
	_, grad, err := m.Eval.EvalDerivs(m.Tape, mid)
	outward := grad
	if err != nil {
		outward = axisUnit(axis)
	}

	m.emitOriented(v0, v1, v2, outward)
	m.emitOriented(v0, v2, v3, outward)
}

func edgeMidpoint(cells [4]*xtree.Node) ms3.Vec {
	var sum ms3.Vec
	n := 0
	for _, c := range cells {
		if c != nil {
			sum = ms3.Add(sum, c.Region.Center())
			n++
		}
	}
	if n == 0 {
		return ms3.Vec{}
	}
	return ms3.Scale(1/float32(n), sum)
}

func axisUnit(a Axis) ms3.Vec {
	switch a {
	case AxisX:
		return ms3.Vec{X: 1}
	case AxisY:
		return ms3.Vec{Y: 1}
	default:
		return ms3.Vec{Z: 1}
	}
}

// emitOriented adds triangle (a,b,c) or its flip (a,c,b), whichever has a
// face normal agreeing in sign with outward, i.e. pointing from inside to
// outside the solid (spec.md §4.I).
func (m *Mesher) emitOriented(a, b, c uint32, outward ms3.Vec) {
	if int(a) >= len(m.Brep.verts) || int(b) >= len(m.Brep.verts) || int(c) >= len(m.Brep.verts) {
		return
	}
	pa, pb, pc := m.Brep.verts[a], m.Brep.verts[b], m.Brep.verts[c]
	normal := ms3.Cross(ms3.Sub(pb, pa), ms3.Sub(pc, pa))
	if ms3.Dot(normal, outward) < 0 {
		b, c = c, b
	}
	m.Brep.AddTriangle(a, b, c)
}
