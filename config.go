package dctree

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/soypat/dctree/internal/worker"
)

// Algorithm selects the mesh extraction variant, matching spec.md §6's
// render(...) parameter of the same name.
type Algorithm int

const (
	DualContouring Algorithm = iota
	IsoSimplex
	Hybrid
)

func (a Algorithm) String() string {
	switch a {
	case DualContouring:
		return "dual_contouring"
	case IsoSimplex:
		return "iso_simplex"
	case Hybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// FreeThreadHandler is the cooperative hook invoked from a worker goroutine
// when it finds no task anywhere; implementations must return promptly
// (spec.md §6's free_thread_handler.offer_wait()).
type FreeThreadHandler = worker.FreeThreadHandler

// Config holds Render's tunables, corresponding to spec.md §6's
// render(F, region, min_feature, max_err, workers, algorithm, progress_cb,
// cancel_flag, free_thread_handler) parameter list. Zero-value fields are
// filled in by DefaultConfig's rules when passed to Render.
type Config struct {
	MinFeature        float32
	MaxErr            float32
	Workers           int
	Algorithm         Algorithm
	ProgressCallback  func(float32)
	Cancel            CancelFlag
	FreeThreadHandler FreeThreadHandler
	Registerer        prometheus.Registerer
}

// DefaultConfig returns the defaults spec.md §6 names: min_feature=0.1,
// max_err=1e-8, workers=hw_concurrency, algorithm=DUAL_CONTOURING.
func DefaultConfig() Config {
	return Config{
		MinFeature: 0.1,
		MaxErr:     1e-8,
		Workers:    runtime.NumCPU(),
		Algorithm:  DualContouring,
	}
}

// withDefaults fills any zero-valued tunable with DefaultConfig's value,
// the validated-constructor pattern glrender.NewOctreeRenderer uses rather
// than a config-file/env layer (this is a library, not a CLI).
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinFeature <= 0 {
		c.MinFeature = d.MinFeature
	}
	if c.MaxErr <= 0 {
		c.MaxErr = d.MaxErr
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	return c
}
