// Package eyes provides the public API for the eyes reactive runtime.
//
// A Runtime ties together the observable store, the access ledger and the
// derived computation graph:
//
//	rt := eyes.New()
//	cart := rt.MustWrap(map[string]any{"apple": 2, "pear": 1}, "cart").(*eye.Record)
//
//	total := 0
//	rt.Derive(func() {
//	    for _, c := range eye.LookupDelta(cart) {
//	        if c.HadPrev {
//	            total -= c.Prev.(int)
//	        }
//	        if c.HasNext {
//	            total += c.Next.(int)
//	        }
//	    }
//	}, derive.Options{Name: "total"})
//
//	cart.Set("plum", 4)
//	rt.Flush() // total is 7
//
// Writes queue the nodes they affect; Flush (or the end of a Batch) runs
// each of them once. WithImmediate and WithDefer choose other
// boundaries.
package eyes

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/eyes/pkg/delta"
	"github.com/vango-dev/eyes/pkg/derive"
	"github.com/vango-dev/eyes/pkg/eye"
	"github.com/vango-dev/eyes/pkg/ledger"
	"github.com/vango-dev/eyes/pkg/metrics"
	"github.com/vango-dev/eyes/pkg/path"
)

// Version is the runtime version reported by the CLI.
const Version = "0.3.0"

// Runtime owns one store and the graph deriving from it. A Runtime is
// not safe for concurrent use.
type Runtime struct {
	paths   *path.Registry
	ledger  *ledger.Ledger
	broker  *delta.Broker
	graph   *derive.Graph
	store   *eye.Store
	metrics *metrics.Collector
	logger  *slog.Logger
}

type options struct {
	logger          *slog.Logger
	registry        prometheus.Registerer
	namespace       string
	maxRunsPerDrain int
	deferFn         func(func())
	immediate       bool
	tracer          trace.Tracer
}

// Option configures a Runtime.
type Option func(*options)

// WithLogger sets the logger of every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics registers runtime metrics with registry under namespace.
func WithMetrics(registry prometheus.Registerer, namespace string) Option {
	return func(o *options) {
		o.registry = registry
		o.namespace = namespace
	}
}

// WithMaxRunsPerDrain bounds derived runs per drain. Zero means unbounded.
func WithMaxRunsPerDrain(n int) Option {
	return func(o *options) {
		o.maxRunsPerDrain = n
	}
}

// WithDefer hands scheduled re-runs to fn instead of running them right
// after the write that caused them.
func WithDefer(fn func(func())) Option {
	return func(o *options) {
		o.deferFn = fn
	}
}

// WithImmediate re-runs dependent nodes right after each write instead of
// waiting for Flush.
func WithImmediate() Option {
	return func(o *options) {
		o.immediate = true
	}
}

// WithTracer sets the tracer used by FlushContext.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// New creates a Runtime.
func New(opts ...Option) *Runtime {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	rt := &Runtime{
		paths:  path.NewRegistry(),
		logger: o.logger.With("component", "runtime"),
	}

	ledgerOpts := []ledger.Option{ledger.WithLogger(o.logger.With("component", "ledger"))}
	graphOpts := []derive.Option{
		derive.WithLogger(o.logger.With("component", "derive")),
		derive.WithMaxRunsPerDrain(o.maxRunsPerDrain),
	}
	if o.registry != nil {
		mopts := []metrics.Option{metrics.WithRegistry(o.registry)}
		if o.namespace != "" {
			mopts = append(mopts, metrics.WithNamespace(o.namespace))
		}
		rt.metrics = metrics.New(mopts...)
		ledgerOpts = append(ledgerOpts, ledger.WithFailureHook(rt.metrics.ObserverFailed))
		graphOpts = append(graphOpts, derive.WithRecorder(rt.metrics))
	}
	switch {
	case o.deferFn != nil:
		graphOpts = append(graphOpts, derive.WithDefer(o.deferFn))
	case !o.immediate:
		graphOpts = append(graphOpts, derive.WithManualFlush())
	}
	if o.tracer != nil {
		graphOpts = append(graphOpts, derive.WithTracer(o.tracer))
	}

	rt.ledger = ledger.New(ledgerOpts...)
	rt.broker = delta.NewBroker(delta.WithLogger(o.logger.With("component", "delta")))
	rt.graph = derive.New(rt.paths, rt.ledger, rt.broker, graphOpts...)
	rt.store = eye.NewStore(
		eye.WithRegistry(rt.paths),
		eye.WithLedger(rt.ledger),
		eye.WithBroker(rt.broker),
		eye.WithBatcher(rt.graph.Atomic),
		eye.WithLogger(o.logger.With("component", "eye")),
	)
	if rt.metrics != nil {
		rt.metrics.TrackDeltaStates(rt.broker.Len)
	}
	return rt
}

// Store returns the runtime's store.
func (rt *Runtime) Store() *eye.Store { return rt.store }

// Graph returns the runtime's derived computation graph.
func (rt *Runtime) Graph() *derive.Graph { return rt.graph }

// Ledger returns the runtime's access ledger.
func (rt *Runtime) Ledger() *ledger.Ledger { return rt.ledger }

// Paths returns the runtime's path registry.
func (rt *Runtime) Paths() *path.Registry { return rt.paths }

// Metrics returns the metrics collector, or nil without WithMetrics.
func (rt *Runtime) Metrics() *metrics.Collector { return rt.metrics }

// Wrap returns the Pure wrapper of raw, rooted at name.
func (rt *Runtime) Wrap(raw any, name string) (eye.Eye, error) {
	return rt.store.Wrap(raw, eye.Pure, name)
}

// MustWrap is like Wrap but panics on error.
func (rt *Runtime) MustWrap(raw any, name string) eye.Eye {
	return rt.store.MustWrap(raw, eye.Pure, name)
}

// Derive declares a derived computation. See derive.Graph.Derive.
func (rt *Runtime) Derive(fn func(), opts derive.Options) derive.Node {
	return rt.graph.Derive(fn, opts)
}

// Batch runs fn and then every re-run its writes scheduled.
func (rt *Runtime) Batch(fn func()) {
	rt.graph.Batch(fn)
}

// Untracked runs fn without recording dependencies.
func (rt *Runtime) Untracked(fn func()) {
	rt.graph.Untracked(fn)
}

// Flush runs pending re-runs and returns the latest drain error.
func (rt *Runtime) Flush() error {
	return rt.graph.Flush()
}

// FlushContext is Flush inside a trace span.
func (rt *Runtime) FlushContext(ctx context.Context) error {
	return rt.graph.FlushContext(ctx)
}

// Observe registers an access observer and returns the function that
// unregisters it.
func (rt *Runtime) Observe(obs ledger.Observer) (cancel func()) {
	h := rt.ledger.Register(obs)
	return func() { rt.ledger.Unregister(h) }
}

// Close disposes every derived node.
func (rt *Runtime) Close() {
	rt.graph.Close()
	rt.logger.Debug("runtime closed", "paths", rt.paths.Len())
}
