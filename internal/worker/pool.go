// Package worker implements the worker scheduler (Component F of
// spec.md §4.F): a fixed pool of goroutines draining a bounded MPMC task
// stack, each falling back to a local LIFO stack when the global one is
// full, evaluating octree cells and folding finished subtrees back up
// towards the root. Grounded directly on
// original_source/libfive/src/render/brep/worker_pool.cpp's run().
package worker

import (
	"sync"
	"sync/atomic"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soypat/dctree/eval"
	"github.com/soypat/dctree/internal/neighbors"
	"github.com/soypat/dctree/internal/progress"
	"github.com/soypat/dctree/internal/taskstack"
	"github.com/soypat/dctree/internal/xtree"
	"github.com/soypat/dctree/region"
	"github.com/soypat/dctree/tape"
)

// errTypeEvaluatorFault mirrors the root package's ErrTypeEvaluatorFault
// string tag. Duplicated here rather than imported to avoid worker
// depending on the root dctree package.
const errTypeEvaluatorFault = "evaluator_fault"

// FreeThreadHandler is the cooperative hook a worker calls when it finds no
// task anywhere (spec.md §4.F step 3); implementations must return promptly.
type FreeThreadHandler interface {
	OfferWait()
}

// Task is the unit of work passed through the task stack: a cell still
// needing interval- or leaf-evaluation, the tape active at its region, and
// a snapshot of its parent's neighbor table from which its own table is
// lazily derived.
type Task struct {
	Target          *xtree.Node
	Tape            *tape.Tape
	Region          region.Region3
	ParentNeighbors *neighbors.Table
}

// Config bundles the tunables a Build call needs beyond the tree/region
// pair, mirroring the parameter list of spec.md §6's render(...).
type Config struct {
	MinFeature        float32
	MaxErr            float32
	Workers           int
	Cancel            *atomic.Bool
	ProgressCallback  func(float32)
	FreeThreadHandler FreeThreadHandler
	Registerer        prometheus.Registerer
}

// Build runs the full octree construction described by spec.md §4.F and
// returns the finished (or, on cancellation, empty) Root, plus the progress
// Watcher so the caller can keep driving it through the mesh and deletion
// phases. factory produces one Evaluator per worker, since evaluators are
// not shared (spec.md §5).
func Build(factory eval.Factory, root *tape.Tape, reg region.Region3, cfg Config) (*xtree.Root, *progress.Watcher, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	m := newMetrics(cfg.Registerer)

	buildID := uuid.NewString()
	out := &xtree.Root{}
	rootPool := &xtree.Pool{}
	rootNode := rootPool.Get(nil, 0, reg)
	out.SetTree(rootNode)

	done := &atomic.Bool{}
	cancel := cfg.Cancel
	if cancel == nil {
		cancel = &atomic.Bool{}
	}

	tasks := taskstack.New[Task](cfg.Workers)
	if !tasks.Push(&Task{Target: rootNode, Tape: root, Region: reg}) {
		return nil, nil, errors.New("dctree: initial task push failed").WithTag("build_id", buildID)
	}
	m.stackDepth.Set(1)

	totalTicks := progress.Ticks(reg.Level)
	watcher := progress.New(totalTicks, 0, cfg.ProgressCallback)
	watcher.Start()

	var rootLock sync.Mutex
	var wg sync.WaitGroup
	wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		ev := factory(root)
		go func(ev eval.Evaluator) {
			defer wg.Done()
			run(ev, tasks, cfg.MinFeature, cfg.MaxErr, done, cancel, out, &rootLock, watcher, m, cfg.FreeThreadHandler)
		}(ev)
	}
	wg.Wait()
	watcher.EndBuild()

	if cancel.Load() {
		logs.WithTag("build_id", buildID).Info("dctree build cancelled")
		out.Destroy()
		watcher.Finish()
		return &xtree.Root{}, watcher, nil
	}
	return out, watcher, nil
}

func run(ev eval.Evaluator, tasks *taskstack.Stack[Task], minFeature, maxErr float32, done, cancel *atomic.Bool, root *xtree.Root, rootLock *sync.Mutex, watcher *progress.Watcher, m *metrics, fth FreeThreadHandler) {
	m.activeWorkers.Inc()
	defer m.activeWorkers.Dec()

	var local []*Task
	pool := &xtree.Pool{}

	for !done.Load() && !cancel.Load() {
		var task *Task
		if n := len(local); n > 0 {
			task = local[n-1]
			local = local[:n-1]
		} else if t, ok := tasks.Pop(); ok {
			task = t
			m.stackDepth.Dec()
		}

		if task == nil {
			if fth != nil {
				fth.OfferWait()
			}
			continue
		}

		t := task.Target
		tp := task.Tape
		reg := task.Region

		var nb *neighbors.Table
		if t.Parent != nil {
			nb = neighbors.Push(t.ParentIndex, t.Parent.Children, task.ParentNeighbors)
		}

		canSubdivide := reg.Level > 0
		if canSubdivide {
			next, err := t.EvalInterval(ev, tp)
			if err != nil {
				wrapped := errors.New("interval evaluation failed").WithType(errTypeEvaluatorFault).Wrap(err)
				logs.Warn(wrapped)
				m.buildErrors.WithLabelValues(errors.Type(wrapped)).Inc()
				cancel.Store(true)
				break
			}
			tp = next

			if t.State == xtree.Ambiguous {
				rs := reg.Subdivide()
				for i := 0; i < 8; i++ {
					child := pool.Get(t, i, rs[i])
					t.Children[i] = child
					next := &Task{Target: child, Tape: tp, Region: rs[i], ParentNeighbors: nb}
					if tasks.Push(next) {
						m.stackDepth.Inc()
					} else {
						local = append(local, next)
					}
				}
				continue
			}
		} else {
			var nbEdges xtree.NeighborEdges
			if nb != nil {
				nbEdges = nb
			}
			if err := t.EvalLeaf(ev, tp, nbEdges, minFeature); err != nil {
				wrapped := errors.New("leaf evaluation failed").WithType(errTypeEvaluatorFault).Wrap(err)
				logs.Warn(wrapped)
				m.buildErrors.WithLabelValues(errors.Type(wrapped)).Inc()
				cancel.Store(true)
				break
			}
		}

		if watcher != nil {
			var credit int64
			if canSubdivide {
				credit = progress.Ticks(reg.Level)
			} else {
				credit = 1
			}
			watcher.CreditBuild(credit)
			m.ticksTotal.Add(float64(credit))
		}

		for t.Parent != nil {
			parent := t.Parent
			if !parent.IncFinalized() {
				break
			}
			parent.CollectChildren(maxErr, pool)
			if watcher != nil {
				watcher.CreditBuild(1)
				m.ticksTotal.Inc()
			}
			t = parent
		}
		if t.Parent == nil {
			done.Store(true)
		}
	}

	done.Store(true)
	rootLock.Lock()
	root.Claim(pool)
	rootLock.Unlock()
}
