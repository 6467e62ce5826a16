package xtree

import (
	"testing"

	"github.com/soypat/dctree/eval"
	"github.com/soypat/dctree/region"
	"github.com/soypat/dctree/tape"
	"github.com/soypat/glgl/math/ms3"
)

func sphereTape() *tape.Tape {
	var b tape.Builder
	x := b.X()
	y := b.Y()
	z := b.Z()
	x2 := b.Unary(tape.OpSquare, x)
	y2 := b.Unary(tape.OpSquare, y)
	z2 := b.Unary(tape.OpSquare, z)
	sum := b.Binary(tape.OpAdd, x2, b.Binary(tape.OpAdd, y2, z2))
	half := b.Const(0.25) // radius 0.5 squared
	root := b.Binary(tape.OpSub, sum, half)
	return b.Finish(root)
}

func TestEvalIntervalClassifiesEmpty(t *testing.T) {
	tp := sphereTape()
	var c eval.CPU
	n := &Node{Region: region.Region3{Min: ms3.Vec{X: 10, Y: 10, Z: 10}, Max: ms3.Vec{X: 11, Y: 11, Z: 11}}}
	_, err := n.EvalInterval(&c, tp)
	if err != nil {
		t.Fatal(err)
	}
	if n.State != Empty {
		t.Errorf("got state %v, want Empty", n.State)
	}
}

func TestEvalLeafProducesVertexNearSurface(t *testing.T) {
	tp := sphereTape()
	var c eval.CPU
	r := region.Region3{Min: ms3.Vec{X: 0.3, Y: -0.1, Z: -0.1}, Max: ms3.Vec{X: 0.7, Y: 0.1, Z: 0.1}}
	n := &Node{Region: r, State: Ambiguous}
	err := n.EvalLeaf(&c, tp, nil, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if n.Leaf == nil {
		t.Fatal("expected leaf data")
	}
	dist := ms3.Norm(n.Leaf.Vertex) - 0.5
	if dist < -0.05 || dist > 0.05 {
		t.Errorf("vertex %+v too far from radius-0.5 sphere (dist %v)", n.Leaf.Vertex, dist)
	}
}

func TestCollectChildrenCollapsesUniformEmpty(t *testing.T) {
	var pool Pool
	parent := &Node{State: Ambiguous}
	for i := range parent.Children {
		parent.Children[i] = pool.Get(parent, i, region.Region3{})
		parent.Children[i].State = Empty
	}
	parent.CollectChildren(1e-6, &pool)
	if parent.State != Empty {
		t.Errorf("got %v, want Empty", parent.State)
	}
	for _, c := range parent.Children {
		if c != nil {
			t.Error("children should have been released")
		}
	}
	if pool.Len() != 8 {
		t.Errorf("pool should have reclaimed 8 nodes, got %d", pool.Len())
	}
}

func TestCollectChildrenKeepsInternalWhenResidualTooHigh(t *testing.T) {
	var pool Pool
	parent := &Node{State: Ambiguous, Region: region.Region3{Min: ms3.Vec{X: -1, Y: -1, Z: -1}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}}
	for i := range parent.Children {
		c := pool.Get(parent, i, region.Region3{})
		c.State = Ambiguous
		c.Leaf = &Leaf{}
		// Conflicting normals at different points blow up the residual.
		c.Leaf.QEF.Add(ms3.Vec{X: float32(i), Y: 0, Z: 0}, ms3.Vec{X: 1, Y: 0, Z: 0})
		c.Leaf.QEF.Add(ms3.Vec{X: 0, Y: float32(i), Z: 0}, ms3.Vec{X: 0, Y: 1, Z: 0})
		parent.Children[i] = c
	}
	parent.CollectChildren(1e-12, &pool)
	if parent.Leaf != nil {
		t.Error("expected no collapse given near-zero max_err against a real residual")
	}
	for i, c := range parent.Children {
		if c == nil {
			t.Errorf("child %d should still be present when collapse is rejected", i)
		}
	}
}
