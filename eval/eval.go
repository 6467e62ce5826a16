// Package eval specifies the evaluator contract the octree core calls
// into: interval arithmetic for cell classification, point sampling and
// gradients for leaf vertex placement. spec.md names the concrete
// interval/gradient/point evaluators as external collaborators; this
// package is the interface boundary plus (in cpu.go) the default CPU
// implementation used when no GPU or other specialized evaluator is
// supplied, the same split the teacher uses between gleval.SDF3 (the
// interface) and gleval.SDF3CPU (the default implementation).
package eval

import (
	"github.com/soypat/dctree/region"
	"github.com/soypat/dctree/tape"
	"github.com/soypat/glgl/math/ms3"
)

// Interval is an outer bound [Lo, Hi] for F over some region.
type Interval struct {
	Lo, Hi float32
}

// IsEmpty reports whether F is provably positive everywhere in the region
// this interval was computed over.
func (iv Interval) IsEmpty() bool { return iv.Lo > 0 }

// IsFilled reports whether F is provably negative everywhere in the
// region this interval was computed over.
func (iv Interval) IsFilled() bool { return iv.Hi < 0 }

// IntervalEvaluator classifies a cell by bounding F over its region and
// returns a tape specialized (pruned) for every point within that region.
type IntervalEvaluator interface {
	EvalInterval(t *tape.Tape, r region.Region3) (Interval, *tape.Tape, error)
}

// PointEvaluator samples F at a single point.
type PointEvaluator interface {
	EvalPoint(t *tape.Tape, p ms3.Vec) (float32, error)
}

// DerivEvaluator samples F and its gradient at a single point, used to
// accumulate QEF normal/position pairs during leaf evaluation.
type DerivEvaluator interface {
	EvalDerivs(t *tape.Tape, p ms3.Vec) (float32, ms3.Vec, error)
}

// Evaluator is the full contract consumed by the worker pool and XTree
// leaf evaluation: one instance per worker, never shared, as required by
// spec.md §5's "Evaluators are one-per-worker" resource policy.
type Evaluator interface {
	IntervalEvaluator
	PointEvaluator
	DerivEvaluator
}

// Factory constructs one Evaluator per worker. dctree.Render and
// worker.Build take a Factory rather than a ready-made Evaluator so that the worker pool can
// build exactly `workers` independent, non-shared instances, mirroring
// XTreeEvaluator construction in worker_pool.cpp's WorkerPool::build.
type Factory func(root *tape.Tape) Evaluator
