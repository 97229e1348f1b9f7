package eye

import (
	"github.com/vango-dev/eyes/pkg/arraydelta"
	"github.com/vango-dev/eyes/pkg/delta"
	"github.com/vango-dev/eyes/pkg/path"
)

// Seq is the Eye of an ordered sequence (*[]any). Reading an element also
// depends on the length, since any insertion or removal before it changes
// which value occupies the index.
type Seq struct {
	base
	raw *[]any
}

// Kind returns KindSeq.
func (q *Seq) Kind() Kind { return KindSeq }

// Raw returns the underlying slice pointer.
func (q *Seq) Raw() any { return q.raw }

func (q *Seq) lengthPath() *path.Path {
	return q.store.paths.Length(q.path)
}

// Get reads element i. Out-of-range indices return nil.
func (q *Seq) Get(i int) any {
	p := q.childPath(i)
	q.read(p)
	q.read(q.lengthPath())
	a := *q.raw
	if i < 0 || i >= len(a) {
		return nil
	}
	out, wrapped := q.store.child(a[i], q.discipline, p)
	if wrapped && q.discipline == Replacing {
		a[i] = out
	}
	return out
}

// Has reports whether i is a valid index.
func (q *Seq) Has(i int) bool {
	q.read(q.childPath(i))
	q.read(q.lengthPath())
	return i >= 0 && i < len(*q.raw)
}

// Len returns the length and depends on it.
func (q *Seq) Len() int {
	q.read(q.lengthPath())
	return len(*q.raw)
}

// Set stores value at i, growing the sequence with nils when i is past
// the end. Replacing an element is recorded as a removal and an
// insertion at i.
func (q *Seq) Set(i int, value any) {
	if i < 0 {
		panic(invalidKey(i, KindSeq))
	}
	value = Unwrap(value)
	a := *q.raw
	n := len(a)
	if i >= n {
		for len(a) < i {
			a = append(a, nil)
		}
		*q.raw = append(a, value)
		q.pushMutation(arraydelta.Mutation{Index: n, SizeDelta: i + 1 - n})
		q.mutate(func() {
			for j := n; j <= i; j++ {
				q.write(q.childPath(j))
			}
			q.write(q.lengthPath())
			q.write(q.keysPath())
		})
		return
	}
	old := Unwrap(a[i])
	if Same(old, value) {
		return
	}
	a[i] = value
	q.pushMutation(arraydelta.Mutation{Index: i, SizeDelta: -1, Removed: []any{old}})
	q.pushMutation(arraydelta.Mutation{Index: i, SizeDelta: 1})
	q.mutate(func() {
		q.write(q.childPath(i))
	})
}

// SetLen truncates or extends the sequence. Truncation writes every
// removed index, then the length, as one bulk mutation.
func (q *Seq) SetLen(n int) {
	if n < 0 {
		panic(invalidKey(n, KindSeq))
	}
	a := *q.raw
	l := len(a)
	switch {
	case n < l:
		removed := unwrapAll(a[n:])
		clear(a[n:])
		*q.raw = a[:n]
		q.pushMutation(arraydelta.Mutation{Index: n, SizeDelta: n - l, Removed: removed})
		q.mutate(func() {
			for i := l - 1; i >= n; i-- {
				q.write(q.childPath(i))
			}
			q.write(q.lengthPath())
			q.write(q.keysPath())
		})
	case n > l:
		*q.raw = append(a, make([]any, n-l)...)
		q.pushMutation(arraydelta.Mutation{Index: l, SizeDelta: n - l})
		q.mutate(func() {
			for i := l; i < n; i++ {
				q.write(q.childPath(i))
			}
			q.write(q.lengthPath())
			q.write(q.keysPath())
		})
	}
}

// Splice removes deleteCount elements at start, inserts items in their
// place and returns the removed values. A negative start counts from the
// end; start and deleteCount are clamped to the sequence.
func (q *Seq) Splice(start, deleteCount int, items ...any) []any {
	a := *q.raw
	l := len(a)
	if start < 0 {
		start = max(l+start, 0)
	}
	start = min(start, l)
	deleteCount = max(min(deleteCount, l-start), 0)

	removed := unwrapAll(a[start : start+deleteCount])
	next := make([]any, 0, l-deleteCount+len(items))
	next = append(next, a[:start]...)
	for _, it := range items {
		next = append(next, Unwrap(it))
	}
	next = append(next, a[start+deleteCount:]...)
	*q.raw = next

	if deleteCount == 0 && len(items) == 0 {
		return removed
	}
	if deleteCount > 0 {
		q.pushMutation(arraydelta.Mutation{Index: start, SizeDelta: -deleteCount, Removed: removed})
	}
	if len(items) > 0 {
		q.pushMutation(arraydelta.Mutation{Index: start, SizeDelta: len(items)})
	}
	q.mutate(func() {
		for i := start; i < max(l, len(next)); i++ {
			if i < l && i < len(next) && Same(a[i], next[i]) {
				continue
			}
			q.write(q.childPath(i))
		}
		if len(next) != l {
			q.write(q.lengthPath())
			q.write(q.keysPath())
		}
	})
	return removed
}

// Push appends items and returns the new length.
func (q *Seq) Push(items ...any) int {
	q.Splice(len(*q.raw), 0, items...)
	return len(*q.raw)
}

// Pop removes and returns the last element.
func (q *Seq) Pop() any {
	if len(*q.raw) == 0 {
		return nil
	}
	return q.Splice(-1, 1)[0]
}

// Shift removes and returns the first element.
func (q *Seq) Shift() any {
	if len(*q.raw) == 0 {
		return nil
	}
	return q.Splice(0, 1)[0]
}

// Unshift prepends items and returns the new length.
func (q *Seq) Unshift(items ...any) int {
	q.Splice(0, 0, items...)
	return len(*q.raw)
}

// Values reads every element in order.
func (q *Seq) Values() []any {
	q.store.ledger.NotifyKeyRead(q.path)
	out := make([]any, len(*q.raw))
	for i := range out {
		out[i] = q.Get(i)
	}
	return out
}

// Keys returns the valid indices and depends on the membership set.
func (q *Seq) Keys() []int {
	q.store.ledger.NotifyKeyRead(q.path)
	q.read(q.lengthPath())
	out := make([]int, len(*q.raw))
	for i := range out {
		out[i] = i
	}
	return out
}

// Peek returns element i without notifying the ledger. Containers are
// returned raw.
func (q *Seq) Peek(i int) any {
	a := *q.raw
	if i < 0 || i >= len(a) {
		return nil
	}
	return Unwrap(a[i])
}

// GetKey is Get for an integer key of any width.
func (q *Seq) GetKey(key any) any {
	return q.Get(q.index(key))
}

// HasKey is Has for an integer key.
func (q *Seq) HasKey(key any) bool {
	return q.Has(q.index(key))
}

// SetKey is Set for an integer key.
func (q *Seq) SetKey(key, value any) {
	q.Set(q.index(key), value)
}

// RemoveKey splices out element key.
func (q *Seq) RemoveKey(key any) bool {
	i := q.index(key)
	if i < 0 || i >= len(*q.raw) {
		return false
	}
	q.Splice(i, 1)
	return true
}

// KeyList returns Keys as a []any.
func (q *Seq) KeyList() []any {
	keys := q.Keys()
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

func (q *Seq) index(key any) int {
	switch k := key.(type) {
	case int:
		return k
	case int8:
		return int(k)
	case int16:
		return int(k)
	case int32:
		return int(k)
	case int64:
		return int(k)
	case uint:
		return int(k)
	case uint8:
		return int(k)
	case uint16:
		return int(k)
	case uint32:
		return int(k)
	case uint64:
		return int(k)
	}
	panic(invalidKey(key, KindSeq))
}

// pushMutation feeds the array delta state of every consumer watching q.
func (q *Seq) pushMutation(m arraydelta.Mutation) {
	b := q.store.broker
	if !b.Watched(q.id) {
		return
	}
	b.Each(q.id, func(s delta.State) {
		if as, ok := s.(*arrayState); ok {
			as.record(m)
		}
	})
}

func unwrapAll(vs []any) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = Unwrap(v)
	}
	return out
}
