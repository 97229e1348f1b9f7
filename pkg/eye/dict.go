package eye

import (
	"cmp"
	"fmt"
	"slices"
)

// Dict is the Eye of a map with arbitrary comparable keys (map[any]any).
// Set stores values as given and never wraps them; Get returns the
// wrapped view.
type Dict struct {
	base
	raw map[any]any
}

// Kind returns KindDict.
func (m *Dict) Kind() Kind { return KindDict }

// Raw returns the underlying map.
func (m *Dict) Raw() any { return m.raw }

// Get reads the value stored under key.
func (m *Dict) Get(key any) any {
	p := m.childPath(key)
	m.read(p)
	v, ok := m.raw[key]
	if !ok {
		return nil
	}
	out, wrapped := m.store.child(v, m.discipline, p)
	if wrapped && m.discipline == Replacing {
		m.raw[key] = out
	}
	return out
}

// Has reports whether key is present. It depends on the key's value path.
func (m *Dict) Has(key any) bool {
	m.read(m.childPath(key))
	_, ok := m.raw[key]
	return ok
}

// Set stores value under key.
func (m *Dict) Set(key, value any) {
	p := m.childPath(key)
	value = Unwrap(value)
	old, had := m.raw[key]
	if had && Same(old, value) {
		return
	}
	m.raw[key] = value
	m.mutate(func() {
		m.write(p)
		if !had {
			m.write(m.keysPath())
		}
	})
}

// Delete removes key and reports whether it was present. The element
// path is read either way.
func (m *Dict) Delete(key any) bool {
	p := m.childPath(key)
	m.read(p)
	if _, had := m.raw[key]; !had {
		return false
	}
	delete(m.raw, key)
	m.mutate(func() {
		m.write(p)
		m.write(m.keysPath())
	})
	return true
}

// Len returns the number of entries and depends on the membership set.
func (m *Dict) Len() int {
	m.store.ledger.NotifyKeyRead(m.path)
	return len(m.raw)
}

// Keys returns the keys in a stable order and depends on the membership
// set.
func (m *Dict) Keys() []any {
	m.store.ledger.NotifyKeyRead(m.path)
	return m.sortedKeys()
}

// Values returns the values in key order. Besides the membership set it
// depends on every value read.
func (m *Dict) Values() []any {
	m.store.ledger.NotifyKeyRead(m.path)
	keys := m.sortedKeys()
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = m.Get(k)
	}
	return out
}

// Entry is one key/value pair of a Dict.
type Entry struct {
	Key   any
	Value any
}

// Entries returns the entries in key order.
func (m *Dict) Entries() []Entry {
	m.store.ledger.NotifyKeyRead(m.path)
	keys := m.sortedKeys()
	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = Entry{Key: k, Value: m.Get(k)}
	}
	return out
}

// GetKey is Get.
func (m *Dict) GetKey(key any) any { return m.Get(key) }

// HasKey is Has.
func (m *Dict) HasKey(key any) bool { return m.Has(key) }

// SetKey is Set.
func (m *Dict) SetKey(key, value any) { m.Set(key, value) }

// RemoveKey is Delete.
func (m *Dict) RemoveKey(key any) bool { return m.Delete(key) }

// KeyList is Keys.
func (m *Dict) KeyList() []any { return m.Keys() }

// sortedKeys orders keys by type name, then naturally for strings and
// integers and by their printed form otherwise.
func (m *Dict) sortedKeys() []any {
	keys := make([]any, 0, len(m.raw))
	for k := range m.raw {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b any) int {
	ta, tb := fmt.Sprintf("%T", a), fmt.Sprintf("%T", b)
	if ta != tb {
		return cmp.Compare(ta, tb)
	}
	switch x := a.(type) {
	case string:
		return cmp.Compare(x, b.(string))
	case int:
		return cmp.Compare(x, b.(int))
	case int64:
		return cmp.Compare(x, b.(int64))
	case float64:
		return cmp.Compare(x, b.(float64))
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
