package worker

import "github.com/prometheus/client_golang/prometheus"

// metrics bundles the worker pool's prometheus instruments. Registration is
// optional (spec.md's ambient metrics stack is carried regardless, but a
// build call that passes a nil Registerer, e.g. from a test, still runs).
type metrics struct {
	activeWorkers prometheus.Gauge
	ticksTotal    prometheus.Counter
	stackDepth    prometheus.Gauge
	buildErrors   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dctree_worker_active",
			Help: "Number of worker goroutines currently running a Build call.",
		}),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dctree_octree_ticks_total",
			Help: "Cumulative progress ticks credited across all builds.",
		}),
		stackDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dctree_task_stack_depth",
			Help: "Number of tasks currently queued on the bounded MPMC stack.",
		}),
		buildErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dctree_build_errors_total",
			Help: "Build errors by cause.",
		}, []string{"error_type"}),
	}
	if reg != nil {
		reg.MustRegister(m.activeWorkers, m.ticksTotal, m.stackDepth, m.buildErrors)
	}
	return m
}
