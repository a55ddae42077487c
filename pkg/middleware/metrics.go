package middleware

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	sterrors "github.com/vango-dev/statetree/internal/errors"
	"github.com/vango-dev/statetree/pkg/observable"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "statetree").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for write duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "statetree",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics collects Prometheus metrics about writes and the propagation engine.
// Writes are observed by the middleware returned from Middleware; the engine
// is observed through the hooks returned from Hooks.
type Metrics struct {
	writesTotal    *prometheus.CounterVec
	writeDuration  *prometheus.HistogramVec
	writeErrors    *prometheus.CounterVec
	staleMarks     prometheus.Counter
	prunedEdges    prometheus.Counter
	reactionsTotal prometheus.Counter
	diffsTotal     *prometheus.CounterVec
}

// NewMetrics registers the metrics with the configured registry. Registering
// twice with one registry panics, as promauto does.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		writesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_total",
			Help:        "Total number of validated writes by operation and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"op", "status"}),

		writeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "write_duration_seconds",
			Help:        "Write duration in seconds, propagation included",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"op"}),

		writeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "write_errors_total",
			Help:        "Total number of failed or vetoed writes by error category",
			ConstLabels: config.ConstLabels,
		}, []string{"op", "category"}),

		staleMarks: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "computations_marked_stale_total",
			Help:        "Total number of computed properties marked stale",
			ConstLabels: config.ConstLabels,
		}),

		prunedEdges: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pruned_edges_total",
			Help:        "Total number of orphaned subscription edges removed",
			ConstLabels: config.ConstLabels,
		}),

		reactionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reactions_scheduled_total",
			Help:        "Total number of reactions handed to the scheduler",
			ConstLabels: config.ConstLabels,
		}),

		diffsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "diffs_recorded_total",
			Help:        "Total number of diffs recorded by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),
	}
}

// Middleware returns write middleware recording count, duration and outcome.
// Register it on the root to observe a whole tree:
//
//	m := middleware.NewMetrics()
//	root.Use(m.Middleware())
func (m *Metrics) Middleware() observable.Middleware {
	return func(w *observable.Write, next func() error) error {
		start := time.Now()
		err := next()
		m.writeDuration.WithLabelValues(w.Op).Observe(time.Since(start).Seconds())

		status := "ok"
		if err != nil {
			status = "error"
			m.writeErrors.WithLabelValues(w.Op, categorizeError(err)).Inc()
		}
		m.writesTotal.WithLabelValues(w.Op, status).Inc()
		return err
	}
}

// Hooks returns engine hooks feeding the propagation metrics. Hooks are
// process-wide; install them with observable.SetHooks, or merge them with
// other hooks using Chain.
func (m *Metrics) Hooks() observable.Hooks {
	return observable.Hooks{
		Stale: func(*observable.Node, string) {
			m.staleMarks.Inc()
		},
		Pruned: func(*observable.Node, string, uint64) {
			m.prunedEdges.Inc()
		},
		Scheduled: func(*observable.Reaction) {
			m.reactionsTotal.Inc()
		},
		Diff: func(_ *observable.Node, d observable.Diff) {
			m.diffsTotal.WithLabelValues(diffKind(d)).Inc()
		},
	}
}

func diffKind(d observable.Diff) string {
	switch {
	case d.Added:
		return "added"
	case d.Removed:
		return "removed"
	default:
		return "changed"
	}
}

// categorizeError returns the registered category of err. Errors raised by
// other middleware count as vetoes.
func categorizeError(err error) string {
	if c := sterrors.CategoryOf(err); c != "" {
		return string(c)
	}
	var oe *observable.Error
	if errors.As(err, &oe) {
		return "internal"
	}
	return "veto"
}
