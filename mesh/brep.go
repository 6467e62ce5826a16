package mesh

import (
	"github.com/soypat/dctree/internal/xtree"
	"github.com/soypat/glgl/math/ms3"
)

// PerThreadBRep is one worker's private accumulation buffer: a vertex
// list (index 0 reserved, same convention as the merged Mesh) and the
// node→index interning map that lets every cell's dual vertex be emitted
// exactly once no matter how many adjacent quads reference it.
type PerThreadBRep struct {
	verts      []ms3.Vec
	tris       [][3]uint32
	index      map[*xtree.Node]uint32
	minFeature float32
}

// NewPerThreadBRep returns an empty buffer. minFeature sets the
// degenerate-triangle area threshold (ε = 10⁻⁶·min_feature², spec.md
// §4.I).
func NewPerThreadBRep(minFeature float32) *PerThreadBRep {
	return &PerThreadBRep{
		verts:      []ms3.Vec{{}},
		index:      make(map[*xtree.Node]uint32),
		minFeature: minFeature,
	}
}

// VertexIndex interns node's leaf vertex, returning the same index on
// every subsequent call for the same node. Returns 0 (the reserved
// sentinel) if node has no leaf vertex.
func (b *PerThreadBRep) VertexIndex(node *xtree.Node) uint32 {
	if node == nil || node.Leaf == nil {
		return 0
	}
	if idx, ok := b.index[node]; ok {
		return idx
	}
	idx := uint32(len(b.verts))
	b.verts = append(b.verts, node.Leaf.Vertex)
	b.index[node] = idx
	return idx
}

// degenerateEpsilon turns min_feature into the ε used to reject
// zero-area triangles, per spec.md §4.I.
func (b *PerThreadBRep) degenerateEpsilon() float32 {
	return 1e-6 * b.minFeature * b.minFeature
}

// AddTriangle appends (a,b,c) unless it is degenerate: two or more
// identical indices, or zero-area within ε. Returns whether it was kept.
func (b *PerThreadBRep) AddTriangle(a, c, d uint32) bool {
	if a == c || c == d || d == a {
		return false
	}
	pa, pc, pd := b.verts[a], b.verts[c], b.verts[d]
	normal := ms3.Cross(ms3.Sub(pc, pa), ms3.Sub(pd, pa))
	area := 0.5 * ms3.Norm(normal)
	if area < b.degenerateEpsilon() {
		return false
	}
	b.tris = append(b.tris, [3]uint32{a, c, d})
	return true
}

// Len reports the number of accepted triangles, used by progress credit.
func (b *PerThreadBRep) Len() int { return len(b.tris) }
