package xtree

import (
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/mat"
)

// QEF accumulates (n·(x-p))^2 error terms from surface samples and solves
// for the position minimizing total error, the dual vertex of spec.md's
// GLOSSARY. The normal equations are kept as a packed symmetric 3x3 plus a
// 3-vector rather than calling into gonum per sample; gonum/mat is used
// only at Solve time, once per leaf, to invert the accumulated system.
type QEF struct {
	ata   [6]float64 // xx, xy, xz, yy, yz, zz
	atb   [3]float64
	btb   float64
	sum   ms3.Vec
	count int
}

// Add folds one (position, unit normal) surface sample into the
// accumulator.
func (q *QEF) Add(p, normal ms3.Vec) {
	n := ms3.Norm(normal)
	if n == 0 {
		return
	}
	normal = ms3.Scale(1/n, normal)
	nx, ny, nz := float64(normal.X), float64(normal.Y), float64(normal.Z)
	d := nx*float64(p.X) + ny*float64(p.Y) + nz*float64(p.Z)

	q.ata[0] += nx * nx
	q.ata[1] += nx * ny
	q.ata[2] += nx * nz
	q.ata[3] += ny * ny
	q.ata[4] += ny * nz
	q.ata[5] += nz * nz

	q.atb[0] += nx * d
	q.atb[1] += ny * d
	q.atb[2] += nz * d
	q.btb += d * d

	q.sum = ms3.Add(q.sum, p)
	q.count++
}

// Merge folds another QEF's accumulated samples into q, used by
// collectChildren to combine children's QEFs into their parent's.
func (q *QEF) Merge(other QEF) {
	for i := range q.ata {
		q.ata[i] += other.ata[i]
	}
	for i := range q.atb {
		q.atb[i] += other.atb[i]
	}
	q.btb += other.btb
	q.sum = ms3.Add(q.sum, other.sum)
	q.count += other.count
}

// Count reports how many samples were accumulated.
func (q *QEF) Count() int { return q.count }

// MassPoint returns the average of accumulated sample positions, the
// fallback vertex when the system is singular or has no samples.
func (q *QEF) MassPoint() ms3.Vec {
	if q.count == 0 {
		return ms3.Vec{}
	}
	return ms3.Scale(1/float32(q.count), q.sum)
}

// regularization added to the diagonal before solving, matching the role
// of libfive's EIGENVALUE_CUTOFF: it keeps the solve stable for nearly flat
// or nearly degenerate normal sets without materially moving the solution.
const qefRegularization = 1e-8

// Solve finds the position minimizing accumulated error, clamped
// component-wise into [lo, hi], and returns it along with the QEF
// residual at that position (invariant 3 and the collapse-residual design
// note of spec.md §9).
func (q *QEF) Solve(lo, hi ms3.Vec) (ms3.Vec, float32) {
	if q.count == 0 {
		return ms3.MaxElem(lo, ms3.MinElem(hi, ms3.Vec{})), 0
	}
	trace := q.ata[0] + q.ata[3] + q.ata[5]
	lambda := qefRegularization * (trace + 1)
	a := mat.NewDense(3, 3, []float64{
		q.ata[0] + lambda, q.ata[1], q.ata[2],
		q.ata[1], q.ata[3] + lambda, q.ata[4],
		q.ata[2], q.ata[4], q.ata[5] + lambda,
	})
	b := mat.NewVecDense(3, []float64{q.atb[0], q.atb[1], q.atb[2]})
	var x mat.VecDense
	err := x.SolveVec(a, b)
	var v ms3.Vec
	if err != nil {
		v = q.MassPoint()
	} else {
		v = ms3.Vec{X: float32(x.AtVec(0)), Y: float32(x.AtVec(1)), Z: float32(x.AtVec(2))}
	}
	v = ms3.MaxElem(lo, ms3.MinElem(hi, v))
	return v, q.Residual(v)
}

// Residual evaluates the unregularized quadratic form v^T A v - 2 b^T v + c
// at v, the merged-subtree comparison spec.md §9 calls out against max_err.
func (q *QEF) Residual(v ms3.Vec) float32 {
	x, y, z := float64(v.X), float64(v.Y), float64(v.Z)
	// v^T A v
	quad := x*x*q.ata[0] + 2*x*y*q.ata[1] + 2*x*z*q.ata[2] +
		y*y*q.ata[3] + 2*y*z*q.ata[4] + z*z*q.ata[5]
	lin := x*q.atb[0] + y*q.atb[1] + z*q.atb[2]
	r := quad - 2*lin + q.btb
	if r < 0 {
		r = 0 // numerical noise guard; the true quadratic form is PSD
	}
	return float32(r)
}
