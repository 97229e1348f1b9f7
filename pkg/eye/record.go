package eye

import (
	"sort"

	"github.com/vango-dev/eyes/pkg/delta"
)

// Record is the Eye of a string-keyed record (map[string]any).
type Record struct {
	base
	raw map[string]any
}

// Kind returns KindRecord.
func (r *Record) Kind() Kind { return KindRecord }

// Raw returns the underlying map. Under the Replacing discipline it holds
// wrappers for every child read so far.
func (r *Record) Raw() any { return r.raw }

// Get reads key. Containers come back wrapped under the record's
// discipline; other values are returned as stored.
func (r *Record) Get(key string) any {
	p := r.childPath(key)
	r.read(p)
	v, ok := r.raw[key]
	if !ok {
		return nil
	}
	out, wrapped := r.store.child(v, r.discipline, p)
	if wrapped && r.discipline == Replacing {
		r.raw[key] = out
	}
	return out
}

// Has reports whether key exists. It depends on the key's value path.
func (r *Record) Has(key string) bool {
	r.read(r.childPath(key))
	_, ok := r.raw[key]
	return ok
}

// Set stores value under key, unwrapped. Nothing is notified when the
// value is the same as the stored one.
func (r *Record) Set(key string, value any) {
	value = Unwrap(value)
	old, had := r.raw[key]
	old = Unwrap(old)
	if had && Same(old, value) {
		return
	}
	r.raw[key] = value
	r.pushChange(key, old, had, value, true)
	r.mutate(func() {
		r.write(r.childPath(key))
		if !had {
			r.write(r.keysPath())
		}
	})
}

// Delete removes key and reports whether it existed.
func (r *Record) Delete(key string) bool {
	old, had := r.raw[key]
	if !had {
		return false
	}
	delete(r.raw, key)
	r.pushChange(key, Unwrap(old), true, nil, false)
	r.mutate(func() {
		r.write(r.childPath(key))
		r.write(r.keysPath())
	})
	return true
}

// Keys returns the keys in sorted order and depends on the membership set.
func (r *Record) Keys() []string {
	r.store.ledger.NotifyKeyRead(r.path)
	keys := make([]string, 0, len(r.raw))
	for k := range r.raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys and depends on the membership set.
func (r *Record) Len() int {
	r.store.ledger.NotifyKeyRead(r.path)
	return len(r.raw)
}

// GetKey is Get for a string key; other key types panic with ErrInvalidKey.
func (r *Record) GetKey(key any) any {
	return r.Get(r.key(key))
}

// HasKey is Has for a string key.
func (r *Record) HasKey(key any) bool {
	return r.Has(r.key(key))
}

// SetKey is Set for a string key.
func (r *Record) SetKey(key, value any) {
	r.Set(r.key(key), value)
}

// RemoveKey is Delete for a string key.
func (r *Record) RemoveKey(key any) bool {
	return r.Delete(r.key(key))
}

// KeyList returns Keys as a []any.
func (r *Record) KeyList() []any {
	keys := r.Keys()
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

func (r *Record) key(key any) string {
	s, ok := key.(string)
	if !ok {
		panic(invalidKey(key, KindRecord))
	}
	return s
}

// pushChange feeds the lookup delta state of every consumer watching r.
func (r *Record) pushChange(key string, prev any, hadPrev bool, next any, hasNext bool) {
	b := r.store.broker
	if !b.Watched(r.id) {
		return
	}
	b.Each(r.id, func(s delta.State) {
		if ls, ok := s.(*lookupState); ok {
			ls.record(key, prev, hadPrev, next, hasNext)
		}
	})
}
