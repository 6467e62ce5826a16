package neighbors

import "github.com/soypat/glgl/math/ms3"

// edgeAxisBits mirrors xtree's cube edge layout: entry i gives, per axis
// (0=X,1=Y,2=Z), the fixed corner bit shared by both endpoints of edge i,
// or -1 on the edge's varying axis. This lets Edge translate an edge index
// on one cell into the corresponding edge index on an adjacent cell.
var edgeAxisBits = [12][3]int8{
	{-1, 0, 0}, {-1, 1, 0}, {-1, 0, 1}, {-1, 1, 1}, // vary X
	{0, -1, 0}, {1, -1, 0}, {0, -1, 1}, {1, -1, 1}, // vary Y
	{0, 0, -1}, {1, 0, -1}, {0, 1, -1}, {1, 1, -1}, // vary Z
}

func findEdge(bits [3]int8) int {
	for i, e := range edgeAxisBits {
		if e == bits {
			return i
		}
	}
	return -1
}

// Edge implements xtree.NeighborEdges: it looks at the (up to) three other
// cells already known to share edge ei and returns the first already-
// sampled intersection point found among them, so EvalLeaf can skip
// re-running the bisection search for an edge a neighbor already solved.
func (t *Table) Edge(ei int) (ms3.Vec, bool) {
	axisBits := edgeAxisBits[ei]
	va := -1
	for a, v := range axisBits {
		if v == -1 {
			va = a
		}
	}
	other := [2]int{}
	oi := 0
	for a := 0; a < 3; a++ {
		if a != va {
			other[oi] = a
			oi++
		}
	}
	sign := func(bit int8) int8 {
		if bit == 0 {
			return -1
		}
		return 1
	}
	s1, s2 := sign(axisBits[other[0]]), sign(axisBits[other[1]])

	tryDir := func(d [3]int8) (ms3.Vec, bool) {
		n := t.Get(d)
		if n == nil || n.Leaf == nil {
			return ms3.Vec{}, false
		}
		mapped := axisBits
		for a, off := range d {
			if off != 0 {
				mapped[a] = 1 - mapped[a]
			}
		}
		mi := findEdge(mapped)
		if mi < 0 || !n.Leaf.HasEdge[mi] {
			return ms3.Vec{}, false
		}
		return n.Leaf.Intersection[mi], true
	}

	var dA, dB, dC [3]int8
	dA[other[0]] = s1
	dB[other[1]] = s2
	dC[other[0]], dC[other[1]] = s1, s2

	if p, ok := tryDir(dA); ok {
		return p, true
	}
	if p, ok := tryDir(dB); ok {
		return p, true
	}
	if p, ok := tryDir(dC); ok {
		return p, true
	}
	return ms3.Vec{}, false
}
