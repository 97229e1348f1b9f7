package eye

import (
	"fmt"
	"log/slog"
	"reflect"
	"unsafe"

	"github.com/vango-dev/eyes/internal/errors"
	"github.com/vango-dev/eyes/pkg/delta"
	"github.com/vango-dev/eyes/pkg/ledger"
	"github.com/vango-dev/eyes/pkg/path"
)

var (
	// ErrInvalidWrapTarget is returned when Wrap is given a value that is
	// not a wrappable container.
	ErrInvalidWrapTarget = errors.New(errors.CodeInvalidWrapTarget)

	// ErrInvalidKey is the panic value for a key that does not fit the
	// container kind, e.g. a string index on a Seq.
	ErrInvalidKey = errors.New(errors.CodeInvalidKey)

	// ErrNotCallable is returned by Record.Call when the named value is
	// not a Method or IdentityMethod.
	ErrNotCallable = errors.New(errors.CodeNotCallable)
)

// Kind is the container kind behind an Eye.
type Kind uint8

const (
	// KindRecord is a string-keyed record, raw type map[string]any.
	KindRecord Kind = iota + 1
	// KindSeq is an ordered sequence, raw type *[]any.
	KindSeq
	// KindDict is a map with arbitrary comparable keys, raw type map[any]any.
	KindDict
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindSeq:
		return "seq"
	case KindDict:
		return "dict"
	default:
		return "unknown"
	}
}

// Discipline selects how child containers are wrapped.
type Discipline uint8

const (
	// Pure wraps children on read and never mutates the raw container.
	Pure Discipline = iota
	// Replacing wraps children on read and stores the wrapper back into
	// the raw container, so native iteration also sees wrappers.
	Replacing
)

// String returns a human-readable name for the discipline.
func (d Discipline) String() string {
	if d == Replacing {
		return "replacing"
	}
	return "pure"
}

// Eye is an observable view of a raw container. Every access goes through
// the store's ledger. The generic methods accept keys of the kind's key
// type and panic with ErrInvalidKey otherwise.
type Eye interface {
	GetKey(key any) any
	HasKey(key any) bool
	SetKey(key, value any)
	RemoveKey(key any) bool
	KeyList() []any
	Len() int

	Path() *path.Path
	Kind() Kind
	Discipline() Discipline
	Raw() any
	Store() *Store
}

// Opaque values are never wrapped, even if they are containers.
type Opaque interface {
	EyeOpaque()
}

// Store owns the path registry, the ledger, the delta broker and the
// raw-to-wrapper caches of both disciplines. It is process-scoped state;
// create one per runtime.
//
// A Store is not safe for concurrent use.
type Store struct {
	paths  *path.Registry
	ledger *ledger.Ledger
	broker *delta.Broker

	caches [2]map[unsafe.Pointer]Eye
	opaque map[unsafe.Pointer]struct{}
	frozen map[unsafe.Pointer]struct{}
	roots  int

	batch  func(func())
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithRegistry sets the path registry.
func WithRegistry(r *path.Registry) Option {
	return func(s *Store) {
		s.paths = r
	}
}

// WithLedger sets the access ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(s *Store) {
		s.ledger = l
	}
}

// WithBroker sets the delta broker.
func WithBroker(b *delta.Broker) Option {
	return func(s *Store) {
		s.broker = b
	}
}

// WithBatcher makes every mutation run inside fn, so that the writes of
// one mutation reach observers as a single batch. derive.Graph.Atomic is
// the usual value.
func WithBatcher(fn func(func())) Option {
	return func(s *Store) {
		s.batch = fn
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store. Components not supplied by options are
// created fresh.
func NewStore(opts ...Option) *Store {
	s := &Store{
		opaque: make(map[unsafe.Pointer]struct{}),
		frozen: make(map[unsafe.Pointer]struct{}),
	}
	s.caches[Pure] = make(map[unsafe.Pointer]Eye)
	s.caches[Replacing] = make(map[unsafe.Pointer]Eye)
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "eye")
	}
	if s.paths == nil {
		s.paths = path.NewRegistry()
	}
	if s.ledger == nil {
		s.ledger = ledger.New()
	}
	if s.broker == nil {
		s.broker = delta.NewBroker()
	}
	return s
}

// Paths returns the store's path registry.
func (s *Store) Paths() *path.Registry { return s.paths }

// Ledger returns the store's access ledger.
func (s *Store) Ledger() *ledger.Ledger { return s.ledger }

// Broker returns the store's delta broker.
func (s *Store) Broker() *delta.Broker { return s.broker }

// Len returns the number of cached wrappers across both disciplines.
func (s *Store) Len() int {
	return len(s.caches[Pure]) + len(s.caches[Replacing])
}

// Wrap returns the wrapper of raw under discipline d. The same raw
// container and discipline always yield the same wrapper. Wrapping an Eye
// unwraps it first. name becomes the root path segment of a new wrapper;
// an empty name gets a generated one.
func (s *Store) Wrap(raw any, d Discipline, name string) (Eye, error) {
	raw = Unwrap(raw)
	id, kind := identityOf(raw)
	if kind == 0 {
		return nil, errors.New(errors.CodeInvalidWrapTarget).
			WithDetailf("cannot wrap %T", raw).
			WithSuggestion("wrap map[string]any, *[]any or map[any]any; call Normalize on decoded data")
	}
	if s.skip(raw, id) {
		return nil, errors.New(errors.CodeInvalidWrapTarget).
			WithDetailf("%T is frozen or opaque", raw)
	}
	if e, ok := s.caches[d][id]; ok {
		return e, nil
	}
	if name == "" {
		s.roots++
		name = fmt.Sprintf("eye%d", s.roots)
	}
	p := s.paths.Child(s.paths.Root(), name)
	s.logger.Debug("wrapped root", "path", p.String(), "kind", kind.String(), "discipline", d.String())
	return s.create(raw, id, kind, d, p), nil
}

// MustWrap is like Wrap but panics on error.
func (s *Store) MustWrap(raw any, d Discipline, name string) Eye {
	e, err := s.Wrap(raw, d, name)
	if err != nil {
		panic(err)
	}
	return e
}

// Freeze marks a raw container as immutable: reads return it unwrapped
// and Wrap rejects it.
func (s *Store) Freeze(raw any) {
	if id, kind := identityOf(Unwrap(raw)); kind != 0 {
		s.frozen[id] = struct{}{}
	}
}

// MarkOpaque marks a raw container as un-wrappable.
func (s *Store) MarkOpaque(raw any) {
	if id, kind := identityOf(Unwrap(raw)); kind != 0 {
		s.opaque[id] = struct{}{}
	}
}

// Forget drops the cached wrappers of raw. Later wraps create new
// wrappers at new paths.
func (s *Store) Forget(raw any) {
	if id, kind := identityOf(Unwrap(raw)); kind != 0 {
		delete(s.caches[Pure], id)
		delete(s.caches[Replacing], id)
	}
}

// Unwrap returns the raw container behind v when v is one of this store's
// wrappers, or v itself.
func (s *Store) Unwrap(v any) any {
	if e, ok := v.(Eye); ok && e.Store() == s {
		return e.Raw()
	}
	return v
}

func (s *Store) skip(raw any, id unsafe.Pointer) bool {
	if _, ok := raw.(Opaque); ok {
		return true
	}
	if _, ok := s.opaque[id]; ok {
		return true
	}
	_, ok := s.frozen[id]
	return ok
}

func (s *Store) create(raw any, id unsafe.Pointer, kind Kind, d Discipline, p *path.Path) Eye {
	b := base{store: s, path: p, discipline: d, id: id}
	var e Eye
	switch kind {
	case KindRecord:
		e = &Record{base: b, raw: raw.(map[string]any)}
	case KindSeq:
		e = &Seq{base: b, raw: raw.(*[]any)}
	case KindDict:
		e = &Dict{base: b, raw: raw.(map[any]any)}
	}
	s.caches[d][id] = e
	return e
}

// child returns the value to hand out for a stored child: the wrapper of
// a wrappable container, the raw value otherwise. The second result is
// true when a wrapper was returned.
func (s *Store) child(v any, d Discipline, p *path.Path) (any, bool) {
	raw := Unwrap(v)
	id, kind := identityOf(raw)
	if kind == 0 || s.skip(raw, id) {
		return raw, false
	}
	if e, ok := s.caches[d][id]; ok {
		return e, true
	}
	return s.create(raw, id, kind, d, p), true
}

// base carries the state every wrapper shares.
type base struct {
	store      *Store
	path       *path.Path
	discipline Discipline
	id         unsafe.Pointer
}

// Path returns the location of the wrapped container.
func (b *base) Path() *path.Path { return b.path }

// Discipline returns the wrapping discipline.
func (b *base) Discipline() Discipline { return b.discipline }

// Store returns the store that created the wrapper.
func (b *base) Store() *Store { return b.store }

func (b *base) childPath(key any) *path.Path {
	return b.store.paths.Child(b.path, key)
}

func (b *base) keysPath() *path.Path {
	return b.store.paths.Keys(b.path)
}

func (b *base) read(p *path.Path) {
	b.store.ledger.NotifyRead(p)
}

func (b *base) write(p *path.Path) {
	b.store.ledger.NotifyWrite(p)
}

// mutate runs fn through the store's batcher.
func (b *base) mutate(fn func()) {
	if b.store.batch == nil {
		fn()
		return
	}
	b.store.batch(fn)
}

// Unwrap returns the raw container behind an Eye, or v itself.
func Unwrap(v any) any {
	if e, ok := v.(Eye); ok {
		return e.Raw()
	}
	return v
}

// Same reports whether a and b are the same value after unwrapping:
// containers compare by identity, comparable values with ==. Values that
// are not comparable are never the same.
func Same(a, b any) bool {
	a, b = Unwrap(a), Unwrap(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ia, ka := identityOf(a)
	ib, kb := identityOf(b)
	if ka != 0 || kb != 0 {
		return ka == kb && ia == ib
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() || !ra.Comparable() || !rb.Comparable() {
		return false
	}
	return a == b
}

// Normalize converts decoded data into wrappable containers in place:
// every []any becomes a *[]any, recursively. Maps are kept and their
// values normalized.
func Normalize(v any) any {
	switch x := v.(type) {
	case []any:
		for i := range x {
			x[i] = Normalize(x[i])
		}
		return &x
	case *[]any:
		for i := range *x {
			(*x)[i] = Normalize((*x)[i])
		}
		return x
	case map[string]any:
		for k, c := range x {
			x[k] = Normalize(c)
		}
		return x
	case map[any]any:
		for k, c := range x {
			x[k] = Normalize(c)
		}
		return x
	}
	return v
}

// identityOf returns the identity and kind of a wrappable container. Nil
// maps and nil slice pointers are not wrappable.
func identityOf(raw any) (unsafe.Pointer, Kind) {
	switch x := raw.(type) {
	case map[string]any:
		if x == nil {
			return nil, 0
		}
		return reflect.ValueOf(x).UnsafePointer(), KindRecord
	case *[]any:
		if x == nil {
			return nil, 0
		}
		return unsafe.Pointer(x), KindSeq
	case map[any]any:
		if x == nil {
			return nil, 0
		}
		return reflect.ValueOf(x).UnsafePointer(), KindDict
	}
	return nil, 0
}

func invalidKey(key any, kind Kind) *errors.Error {
	return errors.New(errors.CodeInvalidKey).WithDetailf("%#v on %s", key, kind)
}
