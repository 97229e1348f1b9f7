package path

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment framing bytes. Escaped segment text never contains a byte
// below escByte, so a descendant hash always sorts between its ancestor's
// hash and the ancestor's after-last-descendant sentinel.
const (
	segByte   = '\x01'
	afterByte = '\x02'
	escByte   = '\x03'
)

// Type tags distinguish string, integer and symbol keys with equal text.
const (
	tagString = 's'
	tagInt    = 'n'
	tagSymbol = 'y'
)

// Path is the identity of one location inside the observable store.
// Paths are immutable and interned by a Registry: two paths for the same
// location are the same pointer.
type Path struct {
	parent *Path
	key    any
	hash   string
	depth  int
}

// Hash returns the order-comparable hash of the path.
func (p *Path) Hash() string {
	return p.hash
}

// Parent returns the parent path, or nil for the root.
func (p *Path) Parent() *Path {
	return p.parent
}

// Key returns the last segment of the path, or nil for the root.
func (p *Path) Key() any {
	return p.key
}

// Depth returns the number of segments.
func (p *Path) Depth() int {
	return p.depth
}

// IsRoot reports whether p is the registry root.
func (p *Path) IsRoot() bool {
	return p.parent == nil
}

// Segments returns the keys from the root down to p.
func (p *Path) Segments() []any {
	segs := make([]any, p.depth)
	for n := p; n.parent != nil; n = n.parent {
		segs[n.depth-1] = n.key
	}
	return segs
}

// Contains reports whether q is p or one of p's descendants.
func (p *Path) Contains(q *Path) bool {
	return q.hash >= p.hash && q.hash < HashAfterLastDescendant(p)
}

// String renders the path for logs, e.g. "todos.3.title".
func (p *Path) String() string {
	if p.parent == nil {
		return "$"
	}
	var b strings.Builder
	for i, seg := range p.Segments() {
		if i > 0 {
			b.WriteByte('.')
		}
		switch k := seg.(type) {
		case *Symbol:
			b.WriteString(k.String())
		default:
			fmt.Fprint(&b, k)
		}
	}
	return b.String()
}

// HashAfterLastDescendant returns the sentinel hash that sorts after every
// descendant of p and before anything that is not under p. All descendant
// hashes of p lie in the half-open interval [p.Hash(), HashAfterLastDescendant(p)).
func HashAfterLastDescendant(p *Path) string {
	return p.hash + string(afterByte)
}

// Symbol is a key that is not a string or an integer. Symbols compare by
// identity and receive a registry-stable integer alias for hashing.
type Symbol struct {
	name string
}

// NewSymbol creates a new, unique symbol. The name is only descriptive.
func NewSymbol(name string) *Symbol {
	return &Symbol{name: name}
}

// String returns the symbol's description.
func (s *Symbol) String() string {
	return "@" + s.name
}

var (
	// KeysSymbol addresses the membership set of a container. Key-reads
	// and key-level writes are recorded against Child(p, KeysSymbol).
	KeysSymbol = NewSymbol("keys")

	// LengthSymbol addresses the length of a sequence.
	LengthSymbol = NewSymbol("length")
)

// escape makes key text safe to concatenate: bytes 0x00..0x03 become a
// two-byte escape so every byte of the result is >= escByte.
func escape(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if s[i] <= escByte {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= escByte {
			b.WriteByte(escByte)
			b.WriteByte('0' + c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func encodeString(s string) string {
	return string([]byte{segByte, tagString}) + escape(s)
}

func encodeInt(n int64) string {
	return string([]byte{segByte, tagInt}) + strconv.FormatInt(n, 10)
}

func encodeSymbol(alias int) string {
	return string([]byte{segByte, tagSymbol}) + strconv.Itoa(alias)
}
