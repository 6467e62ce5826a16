// Package xtree implements the octree cell (Component E of spec.md): cell
// state classification, leaf evaluation (corner sampling, edge search, QEF
// accumulation) and the collapse fold (collectChildren). Nodes are plain
// structs drawn from a Pool (pool.go) rather than individually
// garbage-collected, mirroring the per-worker arena the source core uses.
package xtree

import (
	"sync/atomic"

	"github.com/soypat/dctree/eval"
	"github.com/soypat/dctree/region"
	"github.com/soypat/dctree/tape"
	"github.com/soypat/glgl/math/ms3"
)

// State is one of the three cell classifications spec.md §3 requires.
type State uint8

const (
	Empty State = iota
	Filled
	Ambiguous
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Filled:
		return "filled"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// the 8 octree corners share bit layout with region.Corner: bit0=X, bit1=Y,
// bit2=Z. cellEdges lists the 12 cube edges as corner-index pairs that
// differ in exactly one bit.
var cellEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7}, // vary X
	{0, 2}, {1, 3}, {4, 6}, {5, 7}, // vary Y
	{0, 4}, {1, 5}, {2, 6}, {3, 7}, // vary Z
}

// Leaf holds the data present once a cell is classified AMBIGUOUS at
// level 0, or is a collapsed internal cell (invariant 4 of spec.md §3).
type Leaf struct {
	Corners      [8]bool // true means F < 0 (inside) at that corner
	Intersection [12]ms3.Vec
	HasEdge      [12]bool
	QEF          QEF
	Vertex       ms3.Vec
	Residual     float32
}

// NeighborEdges is the minimal surface the lazily-resolved Neighbors table
// exposes to EvalLeaf so a neighbor's already-sampled edge intersection can
// be reused instead of re-searched (spec.md §4.E). Declared in this
// package rather than imported from the neighbors package to keep the
// dependency one-directional: neighbors depends on xtree.Node, not the
// reverse.
type NeighborEdges interface {
	// Edge returns the sampled intersection point for cube edge index i
	// (0-11, matching cellEdges) on a same-or-shallower neighbor sharing
	// that edge, if one has already computed it.
	Edge(i int) (ms3.Vec, bool)
}

// Node is one octree cell.
type Node struct {
	State  State
	Region region.Region3

	Parent      *Node // non-owning back-edge, valid only during fold-up
	ParentIndex int
	Children    [8]*Node

	Leaf *Leaf

	finalized int32 // atomic count of finalized children, serializes collectChildren
}

// IncFinalized increments the finalized-child counter and reports whether
// this call is the one that brought it to 8 — i.e. whether the calling
// worker is the one responsible for invoking CollectChildren (spec.md §5's
// "serialized at a parent by an atomic counter of finalized children").
func (n *Node) IncFinalized() bool {
	return atomic.AddInt32(&n.finalized, 1) == 8
}

// EvalInterval classifies the cell via interval arithmetic and returns the
// tape specialized for this cell's region. It never allocates children.
func (n *Node) EvalInterval(ev eval.IntervalEvaluator, t *tape.Tape) (*tape.Tape, error) {
	iv, child, err := ev.EvalInterval(t, n.Region)
	if err != nil {
		return nil, err
	}
	switch {
	case iv.IsEmpty():
		n.State = Empty
	case iv.IsFilled():
		n.State = Filled
	default:
		n.State = Ambiguous
	}
	return child, nil
}

// edgeSearchIterations bounds the bisection used to locate a sign change
// along a cell edge; tolerance is derived from min_feature so it never
// resolves finer than the cells themselves can represent.
const edgeSearchIterations = 16

// EvalLeaf samples the cell's 8 corners, locates sign-change edges by
// binary search, accumulates QEF samples (reusing a neighbor's
// intersection when one is already known), and solves for the vertex.
func (n *Node) EvalLeaf(ev eval.Evaluator, t *tape.Tape, nb NeighborEdges, minFeature float32) error {
	n.State = Ambiguous
	leaf := &Leaf{}
	var corners [8]float32
	for i := 0; i < 8; i++ {
		p := n.Region.Corner(i)
		v, err := ev.EvalPoint(t, p)
		if err != nil {
			return err
		}
		corners[i] = v
		leaf.Corners[i] = v < 0
	}

	tol := minFeature * 1e-4
	for ei, edge := range cellEdges {
		a, b := edge[0], edge[1]
		if leaf.Corners[a] == leaf.Corners[b] {
			continue // no sign change on this edge
		}
		if nb != nil {
			if p, ok := nb.Edge(ei); ok {
				leaf.Intersection[ei] = p
				leaf.HasEdge[ei] = true
				_, grad, err := ev.EvalDerivs(t, p)
				if err == nil {
					leaf.QEF.Add(p, grad)
				}
				continue
			}
		}
		pa, pb := n.Region.Corner(a), n.Region.Corner(b)
		fa, fb := corners[a], corners[b]
		for i := 0; i < edgeSearchIterations; i++ {
			mid := ms3.Scale(0.5, ms3.Add(pa, pb))
			fm, err := ev.EvalPoint(t, mid)
			if err != nil {
				return err
			}
			if sameSign(fa, fm) {
				pa, fa = mid, fm
			} else {
				pb, fb = mid, fm
			}
			if ms3.Norm(ms3.Sub(pb, pa)) < tol {
				break
			}
		}
		_ = fb
		p := ms3.Scale(0.5, ms3.Add(pa, pb))
		leaf.Intersection[ei] = p
		leaf.HasEdge[ei] = true
		_, grad, err := ev.EvalDerivs(t, p)
		if err != nil {
			continue // EvaluatorFault on this sample: dropped, per spec.md §7
		}
		leaf.QEF.Add(p, grad)
	}

	leaf.Vertex, leaf.Residual = leaf.QEF.Solve(n.Region.Min, n.Region.Max)
	n.Leaf = leaf
	return nil
}

func sameSign(a, b float32) bool { return (a < 0) == (b < 0) }

// CollectChildren merges all 8 (now-finalized) children into n. It must
// only be called once IncFinalized has reported the 8th finalization.
// Collapsing (releasing children and becoming a leaf) happens when the
// merged subtree is uniform in sign, or when it is ambiguous and its
// merged QEF residual is within maxErr (invariant 4 of spec.md §3).
func (n *Node) CollectChildren(maxErr float32, pool *Pool) {
	allEmpty, allFilled := true, true
	for _, c := range n.Children {
		if c.State != Empty {
			allEmpty = false
		}
		if c.State != Filled {
			allFilled = false
		}
	}
	switch {
	case allEmpty:
		n.State = Empty
		n.releaseChildren(pool)
		return
	case allFilled:
		n.State = Filled
		n.releaseChildren(pool)
		return
	}

	n.State = Ambiguous
	var merged QEF
	canCollapse := true
	for _, c := range n.Children {
		switch {
		case c.State == Ambiguous && c.Leaf != nil:
			merged.Merge(c.Leaf.QEF)
		case c.State == Ambiguous:
			canCollapse = false // internal (uncollapsed) child: cannot fold through it
		}
	}
	if !canCollapse || merged.Count() == 0 {
		return // remains an internal AMBIGUOUS node with children intact
	}
	vertex, residual := merged.Solve(n.Region.Min, n.Region.Max)
	if residual > maxErr {
		return // children stay, node remains internal AMBIGUOUS
	}
	n.Leaf = &Leaf{QEF: merged, Vertex: vertex, Residual: residual}
	n.releaseChildren(pool)
}

func (n *Node) releaseChildren(pool *Pool) {
	for i, c := range n.Children {
		if c != nil {
			pool.Release(c)
		}
		n.Children[i] = nil
	}
}
