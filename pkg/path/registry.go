package path

import (
	"fmt"
	"math"
	"reflect"

	"github.com/vango-dev/eyes/internal/errors"
)

// ErrInvalidKey is returned (as a panic value) for keys that cannot address
// a location, such as slices or maps.
var ErrInvalidKey = errors.New(errors.CodeInvalidKey)

type childKey struct {
	parent *Path
	seg    string
}

// Registry interns paths. Every reachable location gets exactly one *Path,
// created on first access and reused afterwards so hashes are computed
// once. A Registry is process-scoped state: create one per runtime (or
// per test) and pass it to the components that need it.
//
// A Registry is not safe for concurrent use.
type Registry struct {
	root      *Path
	children  map[childKey]*Path
	aliases   map[any]int
	nextAlias int
}

// NewRegistry creates an empty registry with a fresh root path.
func NewRegistry() *Registry {
	return &Registry{
		root:     &Path{},
		children: make(map[childKey]*Path),
		aliases:  make(map[any]int),
	}
}

// Root returns the root path. Its hash is the empty string, which sorts
// before every other hash.
func (r *Registry) Root() *Path {
	return r.root
}

// Len returns the number of interned non-root paths.
func (r *Registry) Len() int {
	return len(r.children)
}

// Child returns the path of key under p. Keys may be strings, any Go
// integer type, or *Symbol; other comparable keys are hashed through a
// stable integer alias. Non-comparable keys panic with ErrInvalidKey.
func (r *Registry) Child(p *Path, key any) *Path {
	key, seg := r.encode(key)
	ck := childKey{parent: p, seg: seg}
	if c, ok := r.children[ck]; ok {
		return c
	}
	c := &Path{
		parent: p,
		key:    key,
		hash:   p.hash + seg,
		depth:  p.depth + 1,
	}
	r.children[ck] = c
	return c
}

// Parent returns the parent of p, or nil for the root.
func (r *Registry) Parent(p *Path) *Path {
	return p.parent
}

// Keys returns the path that stands for the membership set of the
// container at p.
func (r *Registry) Keys(p *Path) *Path {
	return r.Child(p, KeysSymbol)
}

// Length returns the path of the length of the sequence at p.
func (r *Registry) Length(p *Path) *Path {
	return r.Child(p, LengthSymbol)
}

// Join appends the segments of b below a.
func (r *Registry) Join(a, b *Path) *Path {
	out := a
	for _, seg := range b.Segments() {
		out = r.Child(out, seg)
	}
	return out
}

// FromSegments builds the path of keys below the root.
func (r *Registry) FromSegments(keys ...any) *Path {
	p := r.root
	for _, k := range keys {
		p = r.Child(p, k)
	}
	return p
}

// Alias returns the process-stable integer alias for a symbolic key,
// assigning the next free alias the first time key is seen.
func (r *Registry) Alias(key any) int {
	if a, ok := r.aliases[key]; ok {
		return a
	}
	r.nextAlias++
	r.aliases[key] = r.nextAlias
	return r.nextAlias
}

// encode normalizes key and returns its hash segment.
func (r *Registry) encode(key any) (any, string) {
	switch k := key.(type) {
	case string:
		return k, encodeString(k)
	case int:
		return k, encodeInt(int64(k))
	case int8:
		return int(k), encodeInt(int64(k))
	case int16:
		return int(k), encodeInt(int64(k))
	case int32:
		return int(k), encodeInt(int64(k))
	case int64:
		return int(k), encodeInt(k)
	case uint:
		return unsigned(uint64(k))
	case uint8:
		return int(k), encodeInt(int64(k))
	case uint16:
		return int(k), encodeInt(int64(k))
	case uint32:
		return int(k), encodeInt(int64(k))
	case uint64:
		return unsigned(k)
	case *Symbol:
		return k, encodeSymbol(r.Alias(k))
	}
	if key == nil || !reflect.ValueOf(key).Comparable() {
		panic(errors.New(errors.CodeInvalidKey).WithDetail(fmt.Sprintf("%T cannot be used as a path key", key)))
	}
	return key, encodeSymbol(r.Alias(key))
}

// unsigned encodes an unsigned key. Keys above math.MaxInt64 would alias
// negative integers and are rejected.
func unsigned(k uint64) (any, string) {
	if k > math.MaxInt64 {
		panic(errors.New(errors.CodeInvalidKey).WithDetailf("%d overflows an integer path key", k))
	}
	return int(k), encodeInt(int64(k))
}
