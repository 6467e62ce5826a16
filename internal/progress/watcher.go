// Package progress implements the monotone [0,3] progress observer of
// spec.md §4.J: a dedicated goroutine samples a counter at fixed
// intervals during the build and mesh phases, and the two zero-duration
// phase transitions (alignment, deletion) are reported as exact
// instantaneous jumps.
package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// Ticks returns the over-estimated tick budget for a subtree rooted at
// level: ticks(L) = Σᵢ₌₀ᴸ (1+ticks(i-1))·8, which collapses to the linear
// recurrence t(L) = 9·t(L-1) + 8. It is recomputed from scratch on every
// call rather than cached across calls, matching spec.md §4.F step 7 and
// the §9 design note (the source core, worker_pool.cpp, does the same):
// every early-terminal subtree is credited as if it had fully subdivided,
// which over-estimates total progress but keeps it monotone.
func Ticks(level int) int64 {
	var t int64
	for i := 0; i <= level; i++ {
		t = t*9 + 8
	}
	return t
}

const sampleInterval = 10 * time.Millisecond

// Watcher drives a user progress callback with strictly increasing values
// in [0,3]: phase 0 is the parallel build, phase 1 is reserved (emitted as
// an instantaneous transition since this core never performs intersection
// alignment), phase 2 is meshing, phase 3 is tree deletion.
type Watcher struct {
	cb func(float32)

	buildCounter atomic.Int64
	buildTotal   int64
	meshCounter  atomic.Int64
	meshTotal    int64

	mu   sync.Mutex
	last float32

	stop chan struct{}
	done chan struct{}
}

// New constructs a Watcher for a build whose total tick budget is
// buildTotal (normally progress.Ticks(rootLevel)) and whose mesh phase is
// expected to process meshTotal dual elements. cb may be nil, in which
// case all reporting is a no-op.
func New(buildTotal, meshTotal int64, cb func(float32)) *Watcher {
	if buildTotal <= 0 {
		buildTotal = 1
	}
	if meshTotal <= 0 {
		meshTotal = 1
	}
	return &Watcher{
		cb:         cb,
		buildTotal: buildTotal,
		meshTotal:  meshTotal,
		last:       -1, // below every reported value, so Start's 0.0 is emitted
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// CreditBuild adds n ticks to the build-phase counter; called by workers
// as leaves finalize and subtrees fold up (spec.md §4.F steps 7-8).
func (w *Watcher) CreditBuild(n int64) { w.buildCounter.Add(n) }

// CreditMesh adds n to the mesh-phase counter; called by Render once the
// dual walk has finished, with the number of triangles emitted.
func (w *Watcher) CreditMesh(n int64) { w.meshCounter.Add(n) }

// emit reports v to the callback if it is strictly greater than the last
// reported value, enforcing the monotone requirement even if the sampler
// and explicit phase transitions race.
func (w *Watcher) emit(v float32) {
	if w.cb == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if v <= w.last {
		return
	}
	w.last = v
	w.cb(v)
}

// Start begins sampling the build-phase counter and reports the initial
// 0.0 value, satisfying "first value = 0.0".
func (w *Watcher) Start() {
	w.emit(0.0)
	go w.sampleBuild()
}

func (w *Watcher) sampleBuild() {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			frac := float32(w.buildCounter.Load()) / float32(w.buildTotal)
			if frac > 0.999 {
				frac = 0.999
			}
			w.emit(frac)
		}
	}
}

// EndBuild stops build sampling and emits the exact phase-1 transition
// value (1.0), then immediately the phase-2 transition value (2.0) since
// the reserved alignment phase has zero duration: this core implements
// only DUAL_CONTOURING and performs no alignment pass.
func (w *Watcher) EndBuild() {
	close(w.stop)
	w.emit(1.0)
	w.emit(2.0)
	go w.sampleMesh()
}

func (w *Watcher) sampleMesh() {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			frac := 2 + float32(w.meshCounter.Load())/float32(w.meshTotal)
			if frac > 2.999 {
				frac = 2.999
			}
			w.emit(frac)
		}
	}
}

// Finish reports the exact final value 3.0 once tree deletion completes,
// satisfying "final value = 3.0", and stops the mesh sampler.
func (w *Watcher) Finish() {
	close(w.done)
	w.emit(3.0)
}
