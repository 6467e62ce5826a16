package eval

import (
	"testing"

	"github.com/soypat/dctree/region"
	"github.com/soypat/dctree/tape"
	"github.com/soypat/glgl/math/ms3"
)

// sphere builds F = x^2+y^2+z^2-1, an implicit unit sphere.
func sphere() *tape.Tape {
	var b tape.Builder
	x := b.X()
	y := b.Y()
	z := b.Z()
	x2 := b.Unary(tape.OpSquare, x)
	y2 := b.Unary(tape.OpSquare, y)
	z2 := b.Unary(tape.OpSquare, z)
	sum := b.Binary(tape.OpAdd, x2, b.Binary(tape.OpAdd, y2, z2))
	one := b.Const(1)
	root := b.Binary(tape.OpSub, sum, one)
	return b.Finish(root)
}

func TestCPUEvalPointSphere(t *testing.T) {
	tp := sphere()
	var c CPU
	v, err := c.EvalPoint(tp, ms3.Vec{X: 0, Y: 0, Z: 0})
	if err != nil {
		t.Fatal(err)
	}
	if v != -1 {
		t.Errorf("F(origin) = %v, want -1", v)
	}
	v, err = c.EvalPoint(tp, ms3.Vec{X: 1, Y: 0, Z: 0})
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Errorf("F(1,0,0) = %v, want 0", v)
	}
}

func TestCPUEvalIntervalClassifiesEmptyAndFilled(t *testing.T) {
	tp := sphere()
	var c CPU
	// Region far from the sphere: F > 0 everywhere (empty of surface, outside).
	far := region.Region3{Min: ms3.Vec{X: 10, Y: 10, Z: 10}, Max: ms3.Vec{X: 11, Y: 11, Z: 11}}
	iv, _, err := c.EvalInterval(tp, far)
	if err != nil {
		t.Fatal(err)
	}
	if !iv.IsEmpty() {
		t.Errorf("expected empty interval far outside sphere, got [%v,%v]", iv.Lo, iv.Hi)
	}

	// Tiny region at the origin: entirely inside the sphere (F < 0).
	inside := region.Region3{Min: ms3.Vec{X: -0.01, Y: -0.01, Z: -0.01}, Max: ms3.Vec{X: 0.01, Y: 0.01, Z: 0.01}}
	iv, _, err = c.EvalInterval(tp, inside)
	if err != nil {
		t.Fatal(err)
	}
	if !iv.IsFilled() {
		t.Errorf("expected filled interval at sphere center, got [%v,%v]", iv.Lo, iv.Hi)
	}
}

func TestCPUEvalIntervalPrunesMinDominatedBranch(t *testing.T) {
	// F = min(x - 100, y), evaluated over a region where x-100 is always
	// far below y: the y branch should be pruned from the specialized tape.
	var b tape.Builder
	x := b.X()
	y := b.Y()
	hundred := b.Const(100)
	xShift := b.Binary(tape.OpSub, x, hundred)
	root := b.Binary(tape.OpMin, xShift, y)
	tp := b.Finish(root)

	var c CPU
	r := region.Region3{Min: ms3.Vec{X: -1, Y: -1, Z: -1}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}
	_, specialized, err := c.EvalInterval(tp, r)
	if err != nil {
		t.Fatal(err)
	}
	if specialized.Active(y) {
		t.Error("y should have been pruned: x-100 dominates the min over this region")
	}
	if !specialized.Active(x) || !specialized.Active(xShift) {
		t.Error("x and x-100 must remain active")
	}
}

func TestCPUEvalDerivsSphereGradient(t *testing.T) {
	tp := sphere()
	var c CPU
	v, grad, err := c.EvalDerivs(tp, ms3.Vec{X: 1, Y: 0, Z: 0})
	if err != nil {
		t.Fatal(err)
	}
	if math32AbsApprox(v, 0, 1e-3) == false {
		t.Errorf("F(1,0,0) = %v, want ~0", v)
	}
	// Analytic gradient of x^2+y^2+z^2-1 at (1,0,0) is (2,0,0).
	if !math32AbsApprox(grad.X, 2, 1e-2) || !math32AbsApprox(grad.Y, 0, 1e-2) || !math32AbsApprox(grad.Z, 0, 1e-2) {
		t.Errorf("gradient = %+v, want ~(2,0,0)", grad)
	}
}

func math32AbsApprox(got, want, tol float32) bool {
	d := got - want
	if d < 0 {
		d = -d
	}
	return d <= tol
}
