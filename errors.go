package dctree

import "github.com/aukilabs/go-tooling/pkg/errors"

// Error type tags for the taxonomy of spec.md §7. Render never panics or
// surfaces a language exception; every failure is one of these, wrapped
// through github.com/aukilabs/go-tooling/pkg/errors the way aukilabs-hagall
// tags its own domain errors (errors.New(...).WithType(...)).
const (
	ErrTypeCancelled          = "cancelled"
	ErrTypeInvalidRegion      = "invalid_region"
	ErrTypeEvaluatorFault     = "evaluator_fault"
	ErrTypeResourceExhaustion = "resource_exhaustion"

	// ErrTypeUnsupportedAlgorithm extends the taxonomy beyond spec.md §7's
	// four conditions: this build only implements Config.Algorithm ==
	// DualContouring, so selecting IsoSimplex or Hybrid is rejected with
	// this tag rather than silently falling back.
	ErrTypeUnsupportedAlgorithm = "unsupported_algorithm"
)

// IsCancelled reports whether err originated from the caller's cancel flag
// being observed, per spec.md §7's Cancelled condition.
func IsCancelled(err error) bool { return errors.IsType(err, ErrTypeCancelled) }

// IsInvalidRegion reports whether err originated from an invalid input
// region or resolution.
func IsInvalidRegion(err error) bool { return errors.IsType(err, ErrTypeInvalidRegion) }

// IsEvaluatorFault reports whether err carries the evaluator_fault tag.
// Render does not return such an error: an evaluator error during the
// build sets the cancel flag (the worker pool logs it with this tag), and
// Render then returns an error tagged ErrTypeCancelled.
func IsEvaluatorFault(err error) bool { return errors.IsType(err, ErrTypeEvaluatorFault) }

// IsResourceExhaustion reports whether err carries the resource_exhaustion
// tag, which Render attaches to any error worker.Build returns (in this
// build, failure to queue the initial task). Node pool allocation does not
// report failure.
func IsResourceExhaustion(err error) bool { return errors.IsType(err, ErrTypeResourceExhaustion) }

// IsUnsupportedAlgorithm reports whether err originated from requesting an
// Algorithm this build does not implement.
func IsUnsupportedAlgorithm(err error) bool { return errors.IsType(err, ErrTypeUnsupportedAlgorithm) }
