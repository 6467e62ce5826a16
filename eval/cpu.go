package eval

import (
	"github.com/chewxy/math32"
	"github.com/soypat/dctree/region"
	"github.com/soypat/dctree/tape"
	"github.com/soypat/glgl/math/ms3"
)

// CPU is the default Evaluator: a straightforward tape interpreter with no
// vectorization, reused one instance per worker exactly as spec.md's
// resource policy requires. It keeps scratch buffers sized to the tape's
// clause count across calls the same way gleval.SDF3CPU reuses its VecPool
// buffers instead of allocating per evaluation.
type CPU struct {
	ivbuf []Interval
	ptbuf []float32
}

// NewCPUFactory returns a Factory producing independent *CPU evaluators,
// suitable as the default passed to the worker pool when callers don't
// supply their own Evaluator implementation (e.g. a GPU one).
func NewCPUFactory() Factory {
	return func(*tape.Tape) Evaluator { return &CPU{} }
}

func (e *CPU) ivScratch(n int) []Interval {
	if cap(e.ivbuf) < n {
		e.ivbuf = make([]Interval, n)
	}
	return e.ivbuf[:n]
}

func (e *CPU) ptScratch(n int) []float32 {
	if cap(e.ptbuf) < n {
		e.ptbuf = make([]float32, n)
	}
	return e.ptbuf[:n]
}

// EvalInterval bounds F over r by propagating interval arithmetic clause by
// clause, recording which operand of each min/max survives so the
// returned tape can drop the dominated branch (tape.ActiveClauses/Specialize).
func (e *CPU) EvalInterval(t *tape.Tape, r region.Region3) (Interval, *tape.Tape, error) {
	clauses := t.Clauses()
	buf := e.ivScratch(len(clauses))
	var prunedOperand map[int]int

	for i, c := range clauses {
		if !t.Active(i) {
			continue
		}
		switch c.Op {
		case tape.OpConst:
			buf[i] = Interval{c.Const, c.Const}
		case tape.OpX:
			buf[i] = Interval{r.Min.X, r.Max.X}
		case tape.OpY:
			buf[i] = Interval{r.Min.Y, r.Max.Y}
		case tape.OpZ:
			buf[i] = Interval{r.Min.Z, r.Max.Z}
		default:
			if c.Op.IsMinMax() && (!t.Active(c.A) || !t.Active(c.B)) {
				// An earlier specialization dropped one operand; its buf
				// slot was not computed, so the survivor passes through.
				keep, src := 0, c.A
				if !t.Active(c.A) {
					keep, src = 1, c.B
				}
				buf[i] = buf[src]
				if prunedOperand == nil {
					prunedOperand = make(map[int]int)
				}
				prunedOperand[i] = keep
				continue
			}
			a := buf[c.A]
			var b Interval
			if c.Op.Arity() == 2 {
				b = buf[c.B]
			}
			res, keep := evalOpInterval(c.Op, a, b, c.Const)
			buf[i] = res
			if keep >= 0 {
				if prunedOperand == nil {
					prunedOperand = make(map[int]int)
				}
				prunedOperand[i] = keep
			}
		}
	}

	result := buf[t.Root()]
	active := tape.ActiveClauses(clauses, t.Root(), prunedOperand)
	for i := range active {
		if !t.Active(i) {
			active[i] = false
		}
	}
	return result, t.Specialize(active, r), nil
}

// evalOpInterval evaluates one clause's interval arithmetic and, for
// OpMin/OpMax, reports which operand (0 or 1) survives when the other is
// provably dominated for the whole interval; -1 means both operands still
// matter.
func evalOpInterval(op tape.Opcode, a, b Interval, constVal float32) (Interval, int) {
	switch op {
	case tape.OpAdd:
		return Interval{a.Lo + b.Lo, a.Hi + b.Hi}, -1
	case tape.OpSub:
		return Interval{a.Lo - b.Hi, a.Hi - b.Lo}, -1
	case tape.OpMul:
		return mulInterval(a, b), -1
	case tape.OpDiv:
		return divInterval(a, b), -1
	case tape.OpMin:
		if a.Hi < b.Lo {
			return a, 0
		}
		if b.Hi < a.Lo {
			return b, 1
		}
		return Interval{minf(a.Lo, b.Lo), minf(a.Hi, b.Hi)}, -1
	case tape.OpMax:
		if a.Lo > b.Hi {
			return a, 0
		}
		if b.Lo > a.Hi {
			return b, 1
		}
		return Interval{maxf(a.Lo, b.Lo), maxf(a.Hi, b.Hi)}, -1
	case tape.OpNeg:
		return Interval{-a.Hi, -a.Lo}, -1
	case tape.OpAbs:
		switch {
		case a.Lo >= 0:
			return a, -1
		case a.Hi <= 0:
			return Interval{-a.Hi, -a.Lo}, -1
		default:
			return Interval{0, maxf(-a.Lo, a.Hi)}, -1
		}
	case tape.OpSqrt:
		lo := maxf(a.Lo, 0)
		hi := maxf(a.Hi, 0)
		return Interval{math32.Sqrt(lo), math32.Sqrt(hi)}, -1
	case tape.OpSquare:
		switch {
		case a.Lo >= 0:
			return Interval{a.Lo * a.Lo, a.Hi * a.Hi}, -1
		case a.Hi <= 0:
			return Interval{a.Hi * a.Hi, a.Lo * a.Lo}, -1
		default:
			return Interval{0, maxf(a.Lo*a.Lo, a.Hi*a.Hi)}, -1
		}
	case tape.OpSin, tape.OpCos:
		return Interval{-1, 1}, -1
	case tape.OpTan:
		return Interval{math32.Inf(-1), math32.Inf(1)}, -1
	case tape.OpAsin:
		lo, hi := clamp11(a.Lo), clamp11(a.Hi)
		return Interval{math32.Asin(lo), math32.Asin(hi)}, -1
	case tape.OpAcos:
		lo, hi := clamp11(a.Lo), clamp11(a.Hi)
		return Interval{math32.Acos(hi), math32.Acos(lo)}, -1
	case tape.OpAtan:
		return Interval{math32.Atan(a.Lo), math32.Atan(a.Hi)}, -1
	case tape.OpAtan2:
		return Interval{-math32.Pi, math32.Pi}, -1
	case tape.OpExp:
		return Interval{math32.Exp(a.Lo), math32.Exp(a.Hi)}, -1
	case tape.OpMod:
		bound := maxf(math32.Abs(b.Lo), math32.Abs(b.Hi))
		return Interval{-bound, bound}, -1
	case tape.OpNaNFill:
		lo, hi := a.Lo, a.Hi
		if badf(lo) {
			lo = a.Hi
		}
		if badf(hi) {
			hi = a.Lo
		}
		if badf(lo) && badf(hi) {
			return Interval{constVal, constVal}, -1
		}
		return Interval{minf(lo, constVal), maxf(hi, constVal)}, -1
	}
	return Interval{math32.Inf(-1), math32.Inf(1)}, -1
}

func mulInterval(a, b Interval) Interval {
	p1, p2, p3, p4 := a.Lo*b.Lo, a.Lo*b.Hi, a.Hi*b.Lo, a.Hi*b.Hi
	lo := minf(minf(p1, p2), minf(p3, p4))
	hi := maxf(maxf(p1, p2), maxf(p3, p4))
	return Interval{lo, hi}
}

func divInterval(a, b Interval) Interval {
	if b.Lo <= 0 && b.Hi >= 0 {
		return Interval{math32.Inf(-1), math32.Inf(1)}
	}
	p1, p2, p3, p4 := a.Lo/b.Lo, a.Lo/b.Hi, a.Hi/b.Lo, a.Hi/b.Hi
	lo := minf(minf(p1, p2), minf(p3, p4))
	hi := maxf(maxf(p1, p2), maxf(p3, p4))
	return Interval{lo, hi}
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func clamp11(v float32) float32 {
	return minf(1, maxf(-1, v))
}

func badf(v float32) bool { return math32.IsNaN(v) || math32.IsInf(v, 0) }

// EvalPoint samples F at a single point by interpreting the tape's active
// clauses in order.
func (e *CPU) EvalPoint(t *tape.Tape, p ms3.Vec) (float32, error) {
	clauses := t.Clauses()
	buf := e.ptScratch(len(clauses))
	for i, c := range clauses {
		if !t.Active(i) {
			continue
		}
		// A min/max with an operand pruned by specialization passes the
		// surviving operand through; the pruned slot is not computed.
		if c.Op.IsMinMax() && !t.Active(c.A) {
			buf[i] = buf[c.B]
			continue
		}
		if c.Op.IsMinMax() && !t.Active(c.B) {
			buf[i] = buf[c.A]
			continue
		}
		buf[i] = evalOpPoint(c, buf, p)
	}
	return buf[t.Root()], nil
}

func evalOpPoint(c tape.Clause, buf []float32, p ms3.Vec) float32 {
	switch c.Op {
	case tape.OpConst:
		return c.Const
	case tape.OpX:
		return p.X
	case tape.OpY:
		return p.Y
	case tape.OpZ:
		return p.Z
	case tape.OpAdd:
		return buf[c.A] + buf[c.B]
	case tape.OpSub:
		return buf[c.A] - buf[c.B]
	case tape.OpMul:
		return buf[c.A] * buf[c.B]
	case tape.OpDiv:
		return buf[c.A] / buf[c.B]
	case tape.OpMin:
		return minf(buf[c.A], buf[c.B])
	case tape.OpMax:
		return maxf(buf[c.A], buf[c.B])
	case tape.OpNeg:
		return -buf[c.A]
	case tape.OpAbs:
		return math32.Abs(buf[c.A])
	case tape.OpSqrt:
		return math32.Sqrt(buf[c.A])
	case tape.OpSquare:
		v := buf[c.A]
		return v * v
	case tape.OpSin:
		return math32.Sin(buf[c.A])
	case tape.OpCos:
		return math32.Cos(buf[c.A])
	case tape.OpTan:
		return math32.Tan(buf[c.A])
	case tape.OpAsin:
		return math32.Asin(buf[c.A])
	case tape.OpAcos:
		return math32.Acos(buf[c.A])
	case tape.OpAtan:
		return math32.Atan(buf[c.A])
	case tape.OpAtan2:
		return math32.Atan2(buf[c.A], buf[c.B])
	case tape.OpExp:
		return math32.Exp(buf[c.A])
	case tape.OpMod:
		return math32.Mod(buf[c.A], buf[c.B])
	case tape.OpNaNFill:
		v := buf[c.A]
		if badf(v) {
			return c.Const
		}
		return v
	}
	return math32.NaN()
}

// gradientEpsilon is the central-difference step used by EvalDerivs. It is
// fixed rather than scaled to region size. EvalDerivs is called at edge
// intersections found during leaf evaluation and at the dual-edge points
// the mesher orients quads by.
const gradientEpsilon = 1e-4

// EvalDerivs samples F and its gradient via central differences. This is
// the default's entire derivative story; a GPU or analytic-derivative
// Evaluator can implement DerivEvaluator directly for exact gradients.
func (e *CPU) EvalDerivs(t *tape.Tape, p ms3.Vec) (float32, ms3.Vec, error) {
	v, err := e.EvalPoint(t, p)
	if err != nil {
		return 0, ms3.Vec{}, err
	}
	const h = gradientEpsilon
	xHi, _ := e.EvalPoint(t, ms3.Vec{X: p.X + h, Y: p.Y, Z: p.Z})
	xLo, _ := e.EvalPoint(t, ms3.Vec{X: p.X - h, Y: p.Y, Z: p.Z})
	yHi, _ := e.EvalPoint(t, ms3.Vec{X: p.X, Y: p.Y + h, Z: p.Z})
	yLo, _ := e.EvalPoint(t, ms3.Vec{X: p.X, Y: p.Y - h, Z: p.Z})
	zHi, _ := e.EvalPoint(t, ms3.Vec{X: p.X, Y: p.Y, Z: p.Z + h})
	zLo, _ := e.EvalPoint(t, ms3.Vec{X: p.X, Y: p.Y, Z: p.Z - h})
	grad := ms3.Vec{
		X: (xHi - xLo) / (2 * h),
		Y: (yHi - yLo) / (2 * h),
		Z: (zHi - zLo) / (2 * h),
	}
	return v, grad, nil
}
