// Package mesh implements Component I of spec.md: the dual-contouring
// mesher that turns a built octree into an indexed triangle mesh, plus
// the per-thread buffers (PerThreadBRep) and merge step that combine
// concurrent workers' output into one Mesh.
package mesh

import "github.com/soypat/glgl/math/ms3"

// Mesh is the final indexed triangle mesh spec.md §6 defines. Vertex
// index 0 is reserved and unused; the first real vertex is at index 1.
type Mesh struct {
	Vertices  []ms3.Vec
	Triangles [][3]uint32
}

// Merge concatenates a set of per-thread mesh buffers into a single Mesh,
// offsetting each thread's local vertex indices by the running vertex
// count so shared-vertex references stay correct across the boundary
// (spec.md §4.I: "on merge, per-thread indices are offset and
// concatenated").
func Merge(threads []*PerThreadBRep) Mesh {
	out := Mesh{Vertices: []ms3.Vec{{}}}
	for _, th := range threads {
		if th == nil {
			continue
		}
		offset := uint32(len(out.Vertices)) - 1
		out.Vertices = append(out.Vertices, th.verts[1:]...)
		for _, tr := range th.tris {
			out.Triangles = append(out.Triangles, [3]uint32{
				tr[0] + offset, tr[1] + offset, tr[2] + offset,
			})
		}
	}
	return out
}
