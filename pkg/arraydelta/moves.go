package arraydelta

import (
	"reflect"
	"slices"

	"github.com/vango-dev/eyes/internal/errors"
)

// identity is the matching key for a value: maps, pointers and channels
// match by reference, other comparable values by equality. Slices and
// funcs never match.
func identity(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return mapRef{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Slice, reflect.Func:
		return nil, false
	}
	if !rv.Comparable() {
		return nil, false
	}
	return v, true
}

type mapRef struct {
	typ reflect.Type
	ptr uintptr
}

// AddMoves pairs removed values with inserted values of the same
// identity and rewrites each pair as a move: both indices are
// bit-complemented and AuxOrder gets the aux slot of each complemented
// insert, in insert order. Removes are pushed onto the aux stack in the
// order they appear in d.Removes.
//
// removed returns the value at an original index, inserted the value at a
// final index. A delta that already contains moves is returned unchanged.
// When values repeat, any valid pairing may be chosen.
func AddMoves(d Delta, removed func(orig int) any, inserted func(pos int) any) Delta {
	if len(d.AuxOrder) > 0 || len(d.Removes) == 0 || len(d.Inserts) == 0 {
		return d
	}

	pending := make(map[any][]int)
	for j, pos := range d.Inserts {
		if k, ok := identity(inserted(pos)); ok {
			pending[k] = append(pending[k], j)
		}
	}
	if len(pending) == 0 {
		return d
	}

	out := Delta{
		Removes: slices.Clone(d.Removes),
		Inserts: slices.Clone(d.Inserts),
	}
	slotOf := make([]int, len(d.Inserts))
	for j := range slotOf {
		slotOf[j] = -1
	}

	next := 0
	for i, orig := range d.Removes {
		k, ok := identity(removed(orig))
		if !ok {
			continue
		}
		js := pending[k]
		if len(js) == 0 {
			continue
		}
		j := js[0]
		pending[k] = js[1:]

		out.Removes[i] = ^orig
		out.Inserts[j] = ^d.Inserts[j]
		slotOf[j] = next
		next++
	}

	for _, s := range slotOf {
		if s >= 0 {
			out.AuxOrder = append(out.AuxOrder, s)
		}
	}
	if next == 0 {
		return d
	}
	return out
}

// AddDeltaMoves is AddMoves for a delta computed between pre and post.
func AddDeltaMoves(d Delta, pre, post []any) Delta {
	return AddMoves(d,
		func(orig int) any { return pre[orig] },
		func(pos int) any { return post[pos] },
	)
}

// Apply replays d against a copy of pre and returns the result. inserted
// supplies the value of every non-move insert by its final index. Apply
// validates the script and returns ErrInconsistentDeltaUsage when it is
// out of order, out of range, or misuses the aux stack.
func Apply(pre []any, d Delta, inserted func(pos int) any) ([]any, error) {
	out := slices.Clone(pre)

	var aux []any
	last := len(out)
	for _, x := range d.Removes {
		i, move := Decode(x)
		if i >= last || i >= len(out) {
			return nil, inconsistent("remove %d after %d or outside length %d", i, last, len(out))
		}
		last = i
		if move {
			aux = append(aux, out[i])
		}
		out = slices.Delete(out, i, i+1)
	}

	used := make([]bool, len(aux))
	k := 0
	last = -1
	for _, x := range d.Inserts {
		i, move := Decode(x)
		if i <= last || i > len(out) {
			return nil, inconsistent("insert %d after %d or outside length %d", i, last, len(out))
		}
		last = i

		var v any
		if move {
			if k >= len(d.AuxOrder) {
				return nil, inconsistent("move insert %d has no aux order entry", i)
			}
			s := d.AuxOrder[k]
			k++
			if s < 0 || s >= len(aux) || used[s] {
				return nil, inconsistent("aux slot %d missing or reused", s)
			}
			used[s] = true
			v = aux[s]
		} else {
			v = inserted(i)
		}
		out = slices.Insert(out, i, v)
	}

	if k != len(d.AuxOrder) {
		return nil, inconsistent("%d aux order entries, %d consumed", len(d.AuxOrder), k)
	}
	for s, ok := range used {
		if !ok {
			return nil, inconsistent("aux slot %d never consumed", s)
		}
	}
	return out, nil
}

func inconsistent(format string, args ...any) error {
	return errors.New(errors.CodeInconsistentDeltaUsage).WithDetailf(format, args...)
}
