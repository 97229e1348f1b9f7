package delta

import (
	"log/slog"
)

// State is the per-consumer bookkeeping a producer keeps for one identity.
// Producers decide what a State holds; the Context only drives its
// lifecycle.
type State interface {
	// StartRun is called when the owning consumer begins a new run and
	// the identity was accessed in the previous run.
	StartRun()

	// FinishRun is called when the run ends and the identity was
	// accessed during it.
	FinishRun()
}

// Broker tracks the stack of active contexts and an index from producer
// identity to the contexts that hold a State for it, so producers can push
// changes to every interested consumer.
//
// A Broker is not safe for concurrent use.
type Broker struct {
	stack  []*Context
	index  map[any]map[*Context]struct{}
	states int

	logger *slog.Logger
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the broker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}

// NewBroker creates an empty broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		index: make(map[any]map[*Context]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default().With("component", "delta")
	}
	return b
}

// NewContext creates the delta context for one consumer. A consumer keeps
// its context for its whole life and closes it when disposed.
func (b *Broker) NewContext(consumer any) *Context {
	return &Context{
		broker:   b,
		consumer: consumer,
		states:   make(map[any]State),
	}
}

// Current returns the innermost active context, or nil outside any run.
func (b *Broker) Current() *Context {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

// Each calls fn with the State every context holds for identity.
func (b *Broker) Each(identity any, fn func(State)) {
	set := b.index[identity]
	if len(set) == 0 {
		return
	}
	for c := range set {
		if s, ok := c.states[identity]; ok {
			fn(s)
		}
	}
}

// Watched reports whether any context holds a State for identity.
// Producers use it to skip building change records nobody will read.
func (b *Broker) Watched(identity any) bool {
	return len(b.index[identity]) > 0
}

// Len returns the number of live states across all contexts.
func (b *Broker) Len() int {
	return b.states
}

func (b *Broker) push(c *Context) {
	b.stack = append(b.stack, c)
}

func (b *Broker) pop(c *Context) {
	for i := len(b.stack) - 1; i >= 0; i-- {
		if b.stack[i] == c {
			copy(b.stack[i:], b.stack[i+1:])
			b.stack[len(b.stack)-1] = nil
			b.stack = b.stack[:len(b.stack)-1]
			if i != len(b.stack) {
				b.logger.Warn("delta context ended out of order", "consumer", c.consumer)
			}
			return
		}
	}
}

func (b *Broker) link(identity any, c *Context) {
	set := b.index[identity]
	if set == nil {
		set = make(map[*Context]struct{})
		b.index[identity] = set
	}
	set[c] = struct{}{}
	b.states++
}

func (b *Broker) unlink(identity any, c *Context) {
	set := b.index[identity]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(b.index, identity)
	}
	b.states--
}

// Context holds one consumer's delta states, keyed by producer identity.
// States survive between runs for as long as the consumer keeps accessing
// the identity.
type Context struct {
	broker   *Broker
	consumer any
	states   map[any]State

	// accessed collects the identities touched by the active run.
	accessed map[any]struct{}
	depth    int
	closed   bool
}

// Consumer returns the value the context was created for.
func (c *Context) Consumer() any {
	return c.consumer
}

// Begin starts a run: every retained state gets StartRun and the context
// becomes the innermost one.
func (c *Context) Begin() {
	if c.closed {
		return
	}
	c.broker.push(c)
	c.depth++
	if c.depth > 1 {
		return
	}
	c.accessed = make(map[any]struct{}, len(c.states))
	for _, s := range c.states {
		s.StartRun()
	}
}

// End finishes a run. States not accessed during the run are dropped from
// the context and the broker index; the rest get FinishRun.
func (c *Context) End() {
	if c.depth == 0 {
		return
	}
	c.broker.pop(c)
	c.depth--
	if c.depth > 0 || c.closed {
		return
	}
	for id, s := range c.states {
		if _, ok := c.accessed[id]; !ok {
			delete(c.states, id)
			c.broker.unlink(id, c)
			continue
		}
		s.FinishRun()
	}
	c.accessed = nil
}

// Active reports whether the context is between Begin and End.
func (c *Context) Active() bool {
	return c.depth > 0
}

// State returns the state for identity, creating it with factory on first
// access. The second result reports whether the state was created by this
// call. Accessing a state marks it as used by the active run.
func (c *Context) State(identity any, factory func() State) (State, bool) {
	if c.accessed != nil {
		c.accessed[identity] = struct{}{}
	}
	if s, ok := c.states[identity]; ok {
		return s, false
	}
	s := factory()
	if c.closed {
		return s, true
	}
	c.states[identity] = s
	c.broker.link(identity, c)
	return s, true
}

// Len returns the number of states the context holds.
func (c *Context) Len() int {
	return len(c.states)
}

// Close drops every state. A closed context ignores Begin and never
// retains new states.
func (c *Context) Close() {
	if c.closed {
		return
	}
	for id := range c.states {
		c.broker.unlink(id, c)
	}
	c.states = map[any]State{}
	c.closed = true
	for c.depth > 0 {
		c.broker.pop(c)
		c.depth--
	}
}
