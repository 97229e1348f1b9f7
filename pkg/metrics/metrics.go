package metrics

import (
	stderrors "errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/eyes/internal/errors"
)

// Config configures the Prometheus collector.
type Config struct {
	// Namespace is the metrics namespace (default: "eyes").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for run duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the Prometheus collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the run duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "eyes",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector records runtime statistics. It implements derive.Recorder,
// and ObserverFailed matches the ledger failure hook.
type Collector struct {
	config  Config
	factory promauto.Factory

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	drainsTotal      *prometheus.CounterVec
	drainRuns        prometheus.Histogram
	nodesAlive       prometheus.Gauge
	observerFailures *prometheus.CounterVec
}

// New creates a collector and registers its metrics.
//
// Metrics collected:
//   - eyes_derived_runs_total: Counter of derived runs by status
//   - eyes_derived_run_duration_seconds: Histogram of run duration
//   - eyes_drains_total: Counter of drains by error code ("" on success)
//   - eyes_drain_runs: Histogram of runs per drain
//   - eyes_derived_nodes: Gauge of live derived nodes
//   - eyes_observer_failures_total: Counter of failed observer callbacks by kind
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		config:  config,
		factory: factory,

		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "derived_runs_total",
			Help:        "Total number of derived computation runs",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "derived_run_duration_seconds",
			Help:        "Derived computation run duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		drainsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "drains_total",
			Help:        "Total number of scheduler drains",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),

		drainRuns: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "drain_runs",
			Help:        "Derived runs per scheduler drain",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 5, 10, 50, 100, 1000, 10000},
		}),

		nodesAlive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "derived_nodes",
			Help:        "Number of live derived nodes",
			ConstLabels: config.ConstLabels,
		}),

		observerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "observer_failures_total",
			Help:        "Total number of access observer callbacks that panicked",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),
	}
}

// RunFinished records one derived run.
func (c *Collector) RunFinished(_ string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.Observe(d.Seconds())
}

// DrainFinished records one scheduler drain.
func (c *Collector) DrainFinished(runs int, err error) {
	c.drainsTotal.WithLabelValues(errorCode(err)).Inc()
	c.drainRuns.Observe(float64(runs))
}

// NodesAlive sets the live node gauge.
func (c *Collector) NodesAlive(n int) {
	c.nodesAlive.Set(float64(n))
}

// ObserverFailed records a recovered observer panic.
func (c *Collector) ObserverFailed(kind string, _ error) {
	c.observerFailures.WithLabelValues(kind).Inc()
}

// TrackDeltaStates exports the number of delta states held for consumers,
// as reported by fn at scrape time.
func (c *Collector) TrackDeltaStates(fn func() int) {
	c.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        "delta_states",
		Help:        "Number of delta states held for consumers",
		ConstLabels: c.config.ConstLabels,
	}, func() float64 { return float64(fn()) })
}

// errorCode maps an error to a low-cardinality label: its registered
// code, "unknown" for foreign errors and "" for nil.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *errors.Error
	if stderrors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return "unknown"
}
