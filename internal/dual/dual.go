// Package dual implements the dual walker (Component H of spec.md §4.H):
// a recursive traversal of the finished octree that visits every
// sign-changing dual edge exactly once, despite neighboring cells sitting
// at different depths, and dispatches each to a mesh.Mesher.
//
// The canonical source recursion (cellProc/faceProc/edgeProc over
// child-pairs) is replaced here with an equivalent leaf-driven rule: of
// the up to four cells that can share a given grid edge, exactly one has
// that edge as its own "high corner" (both non-edge-axis corner bits set)
// cube edge — that cell is the unique owner and the only one that ever
// triggers mesh.Mesher.Load for it. Neighbors on the other three sides start
// from the same lazy same-or-shallower lookup the build phase uses
// (internal/neighbors), then descend into that neighbor's children when it
// turns out to have been subdivided more finely than the owner, down to the
// cell actually touching the shared edge — the same "deepest incident cell"
// a cell/face/edge recursion would have reached.
package dual

import (
	"sync"

	"github.com/soypat/dctree/internal/neighbors"
	"github.com/soypat/dctree/internal/xtree"
	"github.com/soypat/dctree/mesh"
	"github.com/soypat/glgl/math/ms3"
)

// ownerEdges lists, per axis, the single cube edge index (see
// internal/xtree's cellEdges / internal/neighbors' edgeAxisBits layout)
// whose two fixed corner bits are both 1 — the edge this package treats
// as "owned" by whichever leaf has a sign change on it.
var ownerEdges = [3]int{3, 7, 11} // X, Y, Z respectively

var ownerAxes = [3]mesh.Axis{mesh.AxisX, mesh.AxisY, mesh.AxisZ}

// otherAxes returns the two axes other than a, in increasing order.
func otherAxes(a int) (int, int) {
	switch a {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

func dirVec(axis int, v int8) [3]int8 {
	var d [3]int8
	d[axis] = v
	return d
}

// Walk visits every leaf of root, emitting one mesh.Mesher.Load call per
// owned sign-changing edge, sequentially into a single Mesher. Walk treats
// root's boundary as the outer boundary of the build, so walking sibling
// subtrees separately drops the quads that cross between them;
// WalkChildren is the parallel entry point that keeps them.
func Walk(root *xtree.Node, m *mesh.Mesher) {
	walk(root, nil, m)
}

// WalkChildren parallelizes the walk across root's eight children, one
// goroutine and one Mesher per non-nil child, joining before it returns.
// Each child's starting neighbor table is computed the same way the
// sequential Walk would derive it at that point in its own recursion
// (neighbors.Push against root's already-finished, read-only Children), so
// splitting the work this way still resolves neighbors across the
// boundary between two top-level children correctly instead of treating
// it as an outer boundary of the build.
func WalkChildren(root *xtree.Node, meshers [8]*mesh.Mesher) {
	var wg sync.WaitGroup
	for i, c := range root.Children {
		if c == nil || meshers[i] == nil {
			continue
		}
		tbl := neighbors.Push(i, root.Children, nil)
		wg.Add(1)
		go func(c *xtree.Node, tbl *neighbors.Table, m *mesh.Mesher) {
			defer wg.Done()
			walk(c, tbl, m)
		}(c, tbl, meshers[i])
	}
	wg.Wait()
}

func walk(n *xtree.Node, tbl *neighbors.Table, m *mesh.Mesher) {
	if n == nil {
		return
	}
	if n.Leaf != nil {
		visitLeaf(n, tbl, m)
	}
	for i, c := range n.Children {
		if c != nil {
			walk(c, neighbors.Push(i, n.Children, tbl), m)
		}
	}
}

func visitLeaf(n *xtree.Node, tbl *neighbors.Table, m *mesh.Mesher) {
	for axis := 0; axis < 3; axis++ {
		ei := ownerEdges[axis]
		if !n.Leaf.HasEdge[ei] {
			continue
		}
		o1, o2 := otherAxes(axis)
		dA := dirVec(o1, 1)
		dB := dirVec(o2, 1)
		dC := [3]int8{}
		dC[o1], dC[o2] = 1, 1

		mid := edgeMidpoint(n, axis)
		c1 := orSelf(n, tbl, dA, mid)
		c2 := orSelf(n, tbl, dC, mid)
		c3 := orSelf(n, tbl, dB, mid)
		m.Load(ownerAxes[axis], [4]*xtree.Node{n, c1, c2, c3})
	}
}

// edgeMidpoint returns the midpoint of n's owned cube edge for axis, the
// point on the boundary shared with all three of its neighbors across that
// edge; used to descend into a same-size-or-coarser neighbor that is not
// itself a leaf.
func edgeMidpoint(n *xtree.Node, axis int) ms3.Vec {
	o1, o2 := otherAxes(axis)
	base := 1<<o1 | 1<<o2
	lo := n.Region.Corner(base)
	hi := n.Region.Corner(base | 1<<axis)
	return ms3.Scale(0.5, ms3.Add(lo, hi))
}

// orSelf looks up the same-size-or-coarser neighbor in direction d and, if
// that neighbor turns out not to be a leaf (it was subdivided more finely
// on its own side than n), descends to the deepest incident cell actually
// touching the shared edge at mid — spec.md §4.H's ownership rule, applied
// without the recursive cellProc/faceProc/edgeProc traversal. Falls back to
// self when there is no neighbor in that direction (a build boundary).
func orSelf(self *xtree.Node, tbl *neighbors.Table, d [3]int8, mid ms3.Vec) *xtree.Node {
	if tbl == nil {
		return self
	}
	cand := tbl.Get(d)
	if cand == nil {
		return self
	}
	return descend(cand, mid)
}

// descend follows cand's children towards p until reaching a leaf (or a
// childless EMPTY/FILLED cell, which has no vertex to contribute and is
// returned as-is).
func descend(cand *xtree.Node, p ms3.Vec) *xtree.Node {
	for cand.Leaf == nil {
		next := childContaining(cand, p)
		if next == nil {
			return cand
		}
		cand = next
	}
	return cand
}

func childContaining(n *xtree.Node, p ms3.Vec) *xtree.Node {
	// Upper bounds inclusive: the shared edge lies on the upper face of the
	// neighbors reached in the +o1 or +o2 direction alone.
	for _, c := range n.Children {
		if c != nil && c.Region.Contains(p, true) {
			return c
		}
	}
	return nil
}
