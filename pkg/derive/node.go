package derive

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vango-dev/eyes/internal/errors"
	"github.com/vango-dev/eyes/pkg/delta"
	"github.com/vango-dev/eyes/pkg/ledger"
	"github.com/vango-dev/eyes/pkg/path"
)

// Ownership ties a node's lifetime to the node that declared it.
type Ownership uint8

const (
	// Strong children are disposed after any run of the owner that does
	// not derive them again.
	Strong Ownership = iota
	// Weak children live until the owner is disposed.
	Weak
	// Detached nodes have no owner, even when declared inside a run.
	Detached
)

// String returns a human-readable name for the ownership.
func (o Ownership) String() string {
	switch o {
	case Weak:
		return "weak"
	case Detached:
		return "detached"
	default:
		return "strong"
	}
}

// Options configures a derived node.
type Options struct {
	// Name identifies the node in logs, metrics and the inspector.
	Name string

	// Ownership defaults to Strong.
	Ownership Ownership

	// Key lets successive runs of the owner refer to the same child.
	Key any

	// OnDispose runs once when the node is disposed.
	OnDispose func()
}

// slot is the slab entry of one node. Slots are reused; gen tells a live
// node from an older occupant.
type slot struct {
	gen       uint32
	alive     bool
	running   bool
	pending   bool
	// dirty marks a running node whose reads were overwritten by a
	// nested run; it is queued again once its run finishes.
	dirty bool
	name      string
	fn        func()
	onDispose func()
	ownership Ownership
	key       any

	parent   int32
	children []uint32
	keyed    map[any]uint32
	seen     map[uint32]struct{}
	seq      uint32
	depth    string

	deps map[dep]struct{}
	next map[dep]struct{}
	ctx  *delta.Context

	err  error
	runs uint64
}

func (g *Graph) alloc() uint32 {
	if n := len(g.free); n > 0 {
		id := g.free[n-1]
		g.free = g.free[:n-1]
		return id
	}
	g.slots = append(g.slots, slot{})
	return uint32(len(g.slots) - 1)
}

// Node is a handle to a derived node. The zero Node and handles of
// disposed nodes are inert: every method is a no-op.
type Node struct {
	g   *Graph
	id  uint32
	gen uint32
}

func (n Node) slot() *slot {
	if n.g == nil || int(n.id) >= len(n.g.slots) {
		return nil
	}
	s := &n.g.slots[n.id]
	if !s.alive || s.gen != n.gen {
		return nil
	}
	return s
}

// Alive reports whether the node has not been disposed.
func (n Node) Alive() bool {
	return n.slot() != nil
}

// ID returns an identifier that is unique for the life of the graph.
func (n Node) ID() uint64 {
	return uint64(n.gen)<<32 | uint64(n.id)
}

// Name returns the node's name.
func (n Node) Name() string {
	if s := n.slot(); s != nil {
		return s.name
	}
	return ""
}

// Err returns the error of the latest run, including recovered panics.
func (n Node) Err() error {
	if s := n.slot(); s != nil {
		return s.err
	}
	return nil
}

// Deps returns the number of paths the node depends on.
func (n Node) Deps() int {
	if s := n.slot(); s != nil {
		return len(s.deps)
	}
	return 0
}

// Runs returns how many times the node has run.
func (n Node) Runs() uint64 {
	if s := n.slot(); s != nil {
		return s.runs
	}
	return 0
}

// Run re-runs the node now. It is a no-op for disposed nodes.
func (n Node) Run() {
	if n.slot() == nil {
		if n.g != nil {
			n.g.logger.Debug("run skipped", "error", ErrDisposed)
		}
		return
	}
	n.g.run(n.id, n.gen)
	n.g.kick()
}

// Dispose disposes the node and every node it owns. Disposing twice is a
// no-op.
func (n Node) Dispose() {
	if n.slot() == nil {
		return
	}
	n.g.dispose(n.id)
}

// run executes one run of node id: it collects dependencies through a
// ledger observer, then diffs them against the previous set and disposes
// strong children the run no longer derived.
func (g *Graph) run(id, gen uint32) {
	s := &g.slots[id]
	if !s.alive || s.gen != gen || s.running {
		return
	}
	s.pending = false
	s.dirty = false
	s.running = true
	s.seen = make(map[uint32]struct{})
	s.next = make(map[dep]struct{})
	ctx := s.ctx
	fn := s.fn

	g.stack = append(g.stack, id)
	untracked := g.untracked
	g.untracked = 0
	ctx.Begin()
	h := g.ledger.Register(collector{g: g, id: id, gen: gen})

	start := time.Now()
	err := g.call(fn)
	elapsed := time.Since(start)

	g.ledger.Unregister(h)
	ctx.End()
	g.untracked = untracked
	g.stack = g.stack[:len(g.stack)-1]

	s = &g.slots[id]
	if !s.alive || s.gen != gen {
		return
	}
	s.running = false
	s.runs++
	s.err = err
	if err != nil {
		g.logger.Error("derived run failed", "node", s.name, "error", err)
	}

	g.diff(id)
	g.prune(id)
	if s = &g.slots[id]; s.alive && s.gen == gen && s.dirty {
		s.dirty = false
		g.schedule(id)
	}

	if g.recorder != nil {
		g.recorder.RunFinished(g.slots[id].name, elapsed, err)
	}
}

// call runs fn, turning a panic into an error.
func (g *Graph) call(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.Newf(errors.CategoryGraph, "derived computation panicked").Wrap(e)
				return
			}
			err = errors.Newf(errors.CategoryGraph, "derived computation panicked: %v", r)
		}
	}()
	fn()
	return nil
}

// prune disposes strong children that the latest run did not derive.
func (g *Graph) prune(id uint32) {
	s := &g.slots[id]
	var stale []uint32
	for _, c := range s.children {
		if g.slots[c].ownership != Strong {
			continue
		}
		if _, ok := s.seen[c]; !ok {
			stale = append(stale, c)
		}
	}
	s.seen = nil
	for i := len(stale) - 1; i >= 0; i-- {
		g.dispose(stale[i])
	}
}

// dispose tears down node id and everything it owns, children in reverse
// creation order. It runs at most once per node.
func (g *Graph) dispose(id uint32) {
	s := &g.slots[id]
	if !s.alive {
		return
	}
	s.alive = false

	children := s.children
	s.children = nil
	for i := len(children) - 1; i >= 0; i-- {
		g.dispose(children[i])
	}

	s = &g.slots[id]
	for d := range s.deps {
		g.unsubscribe(d, id)
	}
	s.ctx.Close()

	if s.parent >= 0 {
		p := &g.slots[s.parent]
		if p.alive {
			p.children = slices.DeleteFunc(p.children, func(c uint32) bool { return c == id })
			if s.key != nil && p.keyed[s.key] == id {
				delete(p.keyed, s.key)
			}
		}
	}

	name, onDispose := s.name, s.onDispose
	*s = slot{gen: s.gen + 1, parent: -1}
	g.free = append(g.free, id)
	g.alive--
	if g.recorder != nil {
		g.recorder.NodesAlive(g.alive)
	}

	if onDispose != nil {
		g.callDispose(name, onDispose)
	}
}

func (g *Graph) callDispose(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("dispose callback failed", "node", name, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// collector records the dependencies of one run. Only the innermost
// running node collects; outer nodes ignore reads made by nested runs.
type collector struct {
	g   *Graph
	id  uint32
	gen uint32
}

var _ ledger.Observer = collector{}

func (c collector) active() bool {
	g := c.g
	if g.untracked > 0 || len(g.stack) == 0 || g.stack[len(g.stack)-1] != c.id {
		return false
	}
	s := &g.slots[c.id]
	return s.alive && s.gen == c.gen && s.next != nil
}

func (c collector) add(d dep) {
	if c.active() {
		c.g.slots[c.id].next[d] = struct{}{}
	}
}

func (c collector) OnRead(p *path.Path) {
	c.add(dep{path: p, kind: exact})
}

func (c collector) OnKeyRead(p *path.Path) {
	if c.active() {
		c.add(dep{path: c.g.paths.Keys(p), kind: exact})
	}
}

func (c collector) OnWrite(*path.Path) {}

func (c collector) OnDeltaRead(p *path.Path) {
	c.add(dep{path: p, kind: subtree})
}

// Info describes a live node.
type Info struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Parent    uint64 `json:"parent,omitempty"`
	Ownership string `json:"ownership"`
	Depth     string `json:"depth"`
	Deps      int    `json:"deps"`
	Runs      uint64 `json:"runs"`
	Pending   bool   `json:"pending"`
	Err       string `json:"error,omitempty"`
}

func (g *Graph) info(id uint32) Info {
	s := &g.slots[id]
	in := Info{
		ID:        Node{g: g, id: id, gen: s.gen}.ID(),
		Name:      s.name,
		Ownership: s.ownership.String(),
		Depth:     s.depth,
		Deps:      len(s.deps),
		Runs:      s.runs,
		Pending:   s.pending,
	}
	if s.parent >= 0 {
		p := uint32(s.parent)
		in.Parent = Node{g: g, id: p, gen: g.slots[p].gen}.ID()
	}
	if s.err != nil {
		in.Err = s.err.Error()
	}
	return in
}

func sortInfos(infos []Info) {
	slices.SortFunc(infos, func(a, b Info) int {
		return strings.Compare(a.Depth, b.Depth)
	})
}
