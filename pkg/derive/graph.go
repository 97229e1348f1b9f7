package derive

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/eyes/internal/errors"
	"github.com/vango-dev/eyes/pkg/delta"
	"github.com/vango-dev/eyes/pkg/ledger"
	"github.com/vango-dev/eyes/pkg/path"
)

const defaultTracerName = "github.com/vango-dev/eyes/pkg/derive"

var (
	// ErrCascadeBudget is returned by a drain that ran more derived nodes
	// than the configured budget allows. Remaining pending work is dropped.
	ErrCascadeBudget = errors.New(errors.CodeCascadeBudgetExceeded)

	// ErrDisposed describes an operation on a disposed node. It is only
	// logged; the operation itself is a no-op.
	ErrDisposed = errors.New(errors.CodeDisposedNodeReentry)
)

// Recorder receives graph statistics. pkg/metrics provides a Prometheus
// implementation.
type Recorder interface {
	RunFinished(name string, d time.Duration, err error)
	DrainFinished(runs int, err error)
	NodesAlive(n int)
}

// Graph owns derived nodes: their dependency subscriptions, their
// ownership tree and the queue of pending re-runs.
//
// A Graph is not safe for concurrent use. All writes to the store and all
// graph calls must happen on one logical thread.
type Graph struct {
	paths  *path.Registry
	ledger *ledger.Ledger
	broker *delta.Broker
	watch  ledger.Handle

	slots []slot
	free  []uint32
	alive int

	// stack holds the running nodes, innermost last.
	stack     []uint32
	untracked int

	subs map[*path.Path]*subscription
	// index holds the keys of subs sorted by hash.
	index []*path.Path

	queue      queue
	draining   bool
	batchDepth int
	deferred   bool
	lastErr    error

	rootSeq uint32

	deferFn         func(func())
	manual          bool
	maxRunsPerDrain int
	recorder        Recorder
	tracer          trace.Tracer
	logger          *slog.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the graph's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// WithDefer sets the host boundary. Pending re-runs are handed to fn as
// one drain callback instead of running synchronously after the write
// that caused them. fn typically posts to an event loop.
func WithDefer(fn func(func())) Option {
	return func(g *Graph) {
		g.deferFn = fn
	}
}

// WithManualFlush keeps scheduled re-runs queued until Flush or the end
// of a Batch. Writes made between two flushes wake each dependent node
// once, and it sees all of them.
func WithManualFlush() Option {
	return func(g *Graph) {
		g.manual = true
	}
}

// WithMaxRunsPerDrain bounds the number of runs in one drain. Zero means
// unbounded.
func WithMaxRunsPerDrain(n int) Option {
	return func(g *Graph) {
		g.maxRunsPerDrain = n
	}
}

// WithRecorder sets the statistics recorder.
func WithRecorder(r Recorder) Option {
	return func(g *Graph) {
		g.recorder = r
	}
}

// WithTracer sets the tracer used by FlushContext.
func WithTracer(t trace.Tracer) Option {
	return func(g *Graph) {
		g.tracer = t
	}
}

// New creates a graph that learns dependencies from l, keeps delta
// contexts in b and resolves key-read paths through paths.
func New(paths *path.Registry, l *ledger.Ledger, b *delta.Broker, opts ...Option) *Graph {
	g := &Graph{
		paths:  paths,
		ledger: l,
		broker: b,
		subs:   make(map[*path.Path]*subscription),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default().With("component", "derive")
	}
	if g.tracer == nil {
		g.tracer = otel.Tracer(defaultTracerName)
	}
	g.watch = l.Register(ledger.Funcs{Write: g.invalidate})
	return g
}

// Close disposes every node and stops listening to writes.
func (g *Graph) Close() {
	for id := range g.slots {
		if g.slots[id].alive && g.slots[id].parent < 0 {
			g.dispose(uint32(id))
		}
	}
	g.ledger.Unregister(g.watch)
}

// Derive declares a derived computation and runs it once. Declared while
// another node runs, the new node is owned by it according to
// opts.Ownership. With a Key, a re-run of the owner that derives the same
// key gets the existing node back, with fn replacing the old function.
func (g *Graph) Derive(fn func(), opts Options) Node {
	parent := int32(-1)
	if len(g.stack) > 0 && opts.Ownership != Detached {
		parent = int32(g.stack[len(g.stack)-1])
	}

	if parent >= 0 && opts.Key != nil {
		if id, ok := g.slots[parent].keyed[opts.Key]; ok && g.slots[id].alive {
			s := &g.slots[id]
			s.fn = fn
			s.onDispose = opts.OnDispose
			g.slots[parent].seen[id] = struct{}{}
			return Node{g: g, id: id, gen: s.gen}
		}
	}

	id := g.alloc()
	s := &g.slots[id]
	s.alive = true
	s.name = opts.Name
	s.fn = fn
	s.onDispose = opts.OnDispose
	s.ownership = opts.Ownership
	s.key = opts.Key
	s.parent = parent
	s.ctx = g.broker.NewContext(Node{g: g, id: id, gen: s.gen})

	if parent >= 0 {
		p := &g.slots[parent]
		s.depth = p.depth + fmt.Sprintf("%08x", p.seq)
		p.seq++
		p.children = append(p.children, id)
		p.seen[id] = struct{}{}
		if opts.Key != nil {
			if p.keyed == nil {
				p.keyed = make(map[any]uint32)
			}
			p.keyed[opts.Key] = id
		}
	} else {
		s.depth = fmt.Sprintf("%08x", g.rootSeq)
		g.rootSeq++
	}
	if s.name == "" {
		s.name = fmt.Sprintf("derived-%s", s.depth)
	}

	g.alive++
	if g.recorder != nil {
		g.recorder.NodesAlive(g.alive)
	}

	n := Node{g: g, id: id, gen: s.gen}
	g.run(id, s.gen)
	g.kick()
	return n
}

// Batch runs fn and drains pending re-runs once it returns, bypassing the
// host boundary. Batches nest; only the outermost drains.
func (g *Graph) Batch(fn func()) {
	g.batchDepth++
	defer func() {
		g.batchDepth--
		if g.batchDepth == 0 && len(g.stack) == 0 {
			g.drainLogged()
		}
	}()
	fn()
}

// Atomic runs fn and then drains the usual way: right away, or through
// the host boundary when one is set. Writes made by fn wake each
// dependent node once.
func (g *Graph) Atomic(fn func()) {
	g.batchDepth++
	defer func() {
		g.batchDepth--
		g.kick()
	}()
	fn()
}

// Untracked runs fn without recording its reads as dependencies of the
// running node.
func (g *Graph) Untracked(fn func()) {
	g.untracked++
	defer func() { g.untracked-- }()
	fn()
}

// Current returns the innermost running node, or the zero Node.
func (g *Graph) Current() Node {
	if len(g.stack) == 0 {
		return Node{}
	}
	id := g.stack[len(g.stack)-1]
	return Node{g: g, id: id, gen: g.slots[id].gen}
}

// Alive returns the number of live nodes.
func (g *Graph) Alive() int {
	return g.alive
}

// Pending returns the number of queued re-runs.
func (g *Graph) Pending() int {
	return g.queue.Len()
}

// Subscriptions returns the number of paths with at least one subscriber.
func (g *Graph) Subscriptions() int {
	return len(g.subs)
}

// Nodes returns a snapshot of every live node, in depth order.
func (g *Graph) Nodes() []Info {
	var out []Info
	for id := range g.slots {
		s := &g.slots[id]
		if !s.alive {
			continue
		}
		out = append(out, g.info(uint32(id)))
	}
	sortInfos(out)
	return out
}

// kick drains pending work unless a run, drain or batch is in progress;
// with a host boundary the drain is handed to it instead. Manual graphs
// wait for Flush.
func (g *Graph) kick() {
	if g.manual || g.draining || g.batchDepth > 0 || len(g.stack) > 0 || g.queue.Len() == 0 {
		return
	}
	if g.deferFn == nil {
		g.drainLogged()
		return
	}
	if g.deferred {
		return
	}
	g.deferred = true
	g.deferFn(func() {
		g.deferred = false
		g.drainLogged()
	})
}
