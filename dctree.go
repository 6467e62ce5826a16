// Package dctree builds an indexed triangle mesh from an implicit surface
// by adaptively subdividing an octree and dual-contouring the result,
// following the worker-pool build of original_source/libfive adapted to
// Go's goroutine/channel concurrency model.
package dctree

import (
	"sync/atomic"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"

	"github.com/soypat/dctree/eval"
	"github.com/soypat/dctree/internal/dual"
	"github.com/soypat/dctree/internal/progress"
	"github.com/soypat/dctree/internal/worker"
	"github.com/soypat/dctree/internal/xtree"
	"github.com/soypat/dctree/mesh"
	"github.com/soypat/dctree/region"
	"github.com/soypat/dctree/tape"
	"github.com/soypat/glgl/math/ms3"
)

// CancelFlag is a caller-owned cooperative cancellation flag: set it true
// from any goroutine to have an in-progress Render return an empty Mesh at
// the next point a worker observes it, per spec.md §6's cancel_flag.
type CancelFlag = *atomic.Bool

// NewCancelFlag returns a zero-valued CancelFlag ready to pass as
// Config.Cancel and later set from the calling goroutine.
func NewCancelFlag() CancelFlag { return &atomic.Bool{} }

// Render builds the octree for f over bounds and dual-contours it into an
// indexed triangle mesh, implementing spec.md §6's
// render(F, region, min_feature, max_err, workers, algorithm, progress_cb,
// cancel_flag, free_thread_handler) -> Mesh. factory supplies one
// independent eval.Evaluator per worker (spec.md §5); f is the root tape
// those evaluators specialize against.
func Render(factory eval.Factory, f *tape.Tape, bounds ms3.Box, cfg Config) (mesh.Mesh, error) {
	cfg = cfg.withDefaults()
	buildID := uuid.NewString()
	log := logs.WithTag("build_id", buildID)

	if cfg.Algorithm != DualContouring {
		return mesh.Mesh{}, errors.New("dctree: algorithm not implemented in this build").
			WithType(ErrTypeUnsupportedAlgorithm).
			WithTag("build_id", buildID).
			WithTag("algorithm", cfg.Algorithm.String())
	}

	reg, err := region.NewFromBounds(bounds, cfg.MinFeature)
	if err != nil {
		invalid := errors.New("dctree: invalid region").WithType(ErrTypeInvalidRegion).Wrap(err)
		log.Warn(invalid)
		if cfg.ProgressCallback != nil {
			cfg.ProgressCallback(0.0)
			cfg.ProgressCallback(3.0)
		}
		return mesh.Mesh{}, invalid
	}

	cancel := cfg.Cancel
	if cancel == nil {
		cancel = NewCancelFlag()
	}
	if cancel.Load() {
		log.Info("dctree render cancelled before build started")
		if cfg.ProgressCallback != nil {
			cfg.ProgressCallback(0.0)
			cfg.ProgressCallback(3.0)
		}
		return mesh.Mesh{}, errors.New("dctree: cancelled").WithType(ErrTypeCancelled).WithTag("build_id", buildID)
	}

	root, watcher, err := worker.Build(factory, f, reg, worker.Config{
		MinFeature:        cfg.MinFeature,
		MaxErr:            cfg.MaxErr,
		Workers:           cfg.Workers,
		Cancel:            cancel,
		ProgressCallback:  cfg.ProgressCallback,
		FreeThreadHandler: cfg.FreeThreadHandler,
		Registerer:        cfg.Registerer,
	})
	if err != nil {
		wrapped := errors.New("dctree: build failed").WithType(ErrTypeResourceExhaustion).Wrap(err)
		log.Warn(wrapped)
		return mesh.Mesh{}, wrapped
	}

	tree := root.Tree()
	if tree == nil {
		log.Info("dctree render returned an empty mesh after cancellation")
		return mesh.Mesh{}, errors.New("dctree: cancelled").WithType(ErrTypeCancelled).WithTag("build_id", buildID)
	}

	out := meshTree(factory, f, tree, cfg, watcher)

	root.Destroy()
	watcher.Finish()
	return out, nil
}

// meshTree runs the dual walk over tree, parallelizing across its
// top-level children (spec.md §4.H's "may be parallelized across disjoint
// dual subtrees up to workers") with one Mesher/evaluator per child, then
// merges their PerThreadBRep buffers into a single Mesh. A tree that
// collapsed to a single root leaf (no children at all) falls back to one
// sequential walk, since there is nothing to split.
func meshTree(factory eval.Factory, f *tape.Tape, tree *xtree.Node, cfg Config, watcher *progress.Watcher) mesh.Mesh {
	hasChildren := false
	for _, c := range tree.Children {
		if c != nil {
			hasChildren = true
			break
		}
	}

	if !hasChildren {
		m := mesh.NewMesher(factory(f), f, cfg.MinFeature)
		dual.Walk(tree, m)
		watcher.CreditMesh(int64(m.Brep.Len()))
		return mesh.Merge([]*mesh.PerThreadBRep{m.Brep})
	}

	var meshers [8]*mesh.Mesher
	for i, c := range tree.Children {
		if c == nil {
			continue
		}
		meshers[i] = mesh.NewMesher(factory(f), f, cfg.MinFeature)
	}
	dual.WalkChildren(tree, meshers)

	threads := make([]*mesh.PerThreadBRep, 0, 8)
	var credited int64
	for _, m := range meshers {
		if m == nil {
			continue
		}
		threads = append(threads, m.Brep)
		credited += int64(m.Brep.Len())
	}
	watcher.CreditMesh(credited)
	return mesh.Merge(threads)
}
