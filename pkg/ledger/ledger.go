package ledger

import (
	"fmt"
	"log/slog"

	"github.com/vango-dev/eyes/internal/errors"
	"github.com/vango-dev/eyes/pkg/path"
)

// ErrObserverCallbackFailure describes a recovered observer panic. It is
// logged and passed to the failure hook, never returned to the writer.
var ErrObserverCallbackFailure = errors.New(errors.CodeObserverCallbackFailure)

// Observer receives access notifications while registered.
type Observer interface {
	// OnRead is called when the value at p is read.
	OnRead(p *path.Path)

	// OnKeyRead is called when the membership set of the container at p
	// is read (iteration, key listing).
	OnKeyRead(p *path.Path)

	// OnWrite is called when the value at p changes.
	OnWrite(p *path.Path)

	// OnDeltaRead is called when a delta helper consumed the incremental
	// changes of the container at p instead of reading it.
	OnDeltaRead(p *path.Path)
}

// Funcs adapts plain functions to Observer. Nil fields are skipped.
type Funcs struct {
	Read      func(p *path.Path)
	KeyRead   func(p *path.Path)
	Write     func(p *path.Path)
	DeltaRead func(p *path.Path)
}

// OnRead calls f.Read.
func (f Funcs) OnRead(p *path.Path) {
	if f.Read != nil {
		f.Read(p)
	}
}

// OnKeyRead calls f.KeyRead.
func (f Funcs) OnKeyRead(p *path.Path) {
	if f.KeyRead != nil {
		f.KeyRead(p)
	}
}

// OnWrite calls f.Write.
func (f Funcs) OnWrite(p *path.Path) {
	if f.Write != nil {
		f.Write(p)
	}
}

// OnDeltaRead calls f.DeltaRead.
func (f Funcs) OnDeltaRead(p *path.Path) {
	if f.DeltaRead != nil {
		f.DeltaRead(p)
	}
}

// Handle identifies a registration.
type Handle uint64

type entry struct {
	handle Handle
	obs    Observer
}

// Event kinds, used in logs and by the failure hook.
const (
	KindRead      = "read"
	KindKeyRead   = "key_read"
	KindWrite     = "write"
	KindDeltaRead = "delta_read"
)

// Ledger is a synchronous broadcast bus for access notifications. Every
// registered observer receives every event, in registration order.
//
// A Ledger is not safe for concurrent use.
type Ledger struct {
	// active is replaced, never mutated, so observers may register or
	// unregister from inside a callback.
	active []entry
	next   Handle

	logger    *slog.Logger
	onFailure func(kind string, err error)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for observer failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithFailureHook sets a function called after every recovered observer
// panic, e.g. to count failures.
func WithFailureHook(fn func(kind string, err error)) Option {
	return func(l *Ledger) {
		l.onFailure = fn
	}
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default().With("component", "ledger")
	}
	return l
}

// Register adds an observer and returns its handle.
func (l *Ledger) Register(obs Observer) Handle {
	l.next++
	h := l.next
	active := make([]entry, len(l.active), len(l.active)+1)
	copy(active, l.active)
	l.active = append(active, entry{handle: h, obs: obs})
	return h
}

// Unregister removes the observer registered under h. Unknown handles are
// ignored.
func (l *Ledger) Unregister(h Handle) {
	for i, e := range l.active {
		if e.handle != h {
			continue
		}
		active := make([]entry, 0, len(l.active)-1)
		active = append(active, l.active[:i]...)
		l.active = append(active, l.active[i+1:]...)
		return
	}
}

// Len returns the number of registered observers.
func (l *Ledger) Len() int {
	return len(l.active)
}

// NotifyRead broadcasts a read of p.
func (l *Ledger) NotifyRead(p *path.Path) {
	for _, e := range l.active {
		l.call(KindRead, e, p, e.obs.OnRead)
	}
}

// NotifyKeyRead broadcasts a key-read of the container at p.
func (l *Ledger) NotifyKeyRead(p *path.Path) {
	for _, e := range l.active {
		l.call(KindKeyRead, e, p, e.obs.OnKeyRead)
	}
}

// NotifyWrite broadcasts a write of p.
func (l *Ledger) NotifyWrite(p *path.Path) {
	for _, e := range l.active {
		l.call(KindWrite, e, p, e.obs.OnWrite)
	}
}

// NotifyDeltaRead broadcasts a delta-read of the container at p.
func (l *Ledger) NotifyDeltaRead(p *path.Path) {
	for _, e := range l.active {
		l.call(KindDeltaRead, e, p, e.obs.OnDeltaRead)
	}
}

// call invokes one callback, recovering a panic so one observer cannot
// corrupt another observer's run or abort the triggering mutation.
func (l *Ledger) call(kind string, e entry, p *path.Path, fn func(*path.Path)) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := errors.New(errors.CodeObserverCallbackFailure).
			WithDetail(fmt.Sprintf("%s %s: %v", kind, p, r))
		l.logger.Error("observer callback failed",
			"kind", kind,
			"path", p.String(),
			"handle", uint64(e.handle),
			"error", err,
		)
		if l.onFailure != nil {
			l.onFailure(kind, err)
		}
	}()
	fn(p)
}
