package arraydelta

import (
	"sort"

	"github.com/vango-dev/eyes/pkg/ostree"
)

// slot is one element of the current array: its original index, or -1
// for an inserted element.
type slot struct {
	orig int
}

// TreeAccumulator is a Recorder backed by an order-statistics tree with
// one entry per element. It is slower than Accumulator for large splices
// and exists to cross-check it.
type TreeAccumulator struct {
	tree    *ostree.Tree[slot]
	removed map[int]any
	origs   []int
}

// NewTreeAccumulator returns a tree-backed accumulator for an array of
// origLen elements.
func NewTreeAccumulator(origLen int) *TreeAccumulator {
	t := &TreeAccumulator{
		tree:    ostree.New[slot](),
		removed: make(map[int]any),
	}
	for i := 0; i < origLen; i++ {
		t.tree.InsertAt(i, slot{orig: i})
	}
	return t
}

// Len returns the current conceptual length.
func (t *TreeAccumulator) Len() int {
	return t.tree.Len()
}

// Record applies one mutation.
func (t *TreeAccumulator) Record(m Mutation) error {
	length := t.tree.Len()
	switch {
	case m.SizeDelta > 0:
		if m.Index < 0 || m.Index > length {
			return outOfRange(m, length)
		}
		for i := 0; i < m.SizeDelta; i++ {
			t.tree.InsertAt(m.Index+i, slot{orig: -1})
		}
	case m.SizeDelta < 0:
		n := -m.SizeDelta
		if m.Index < 0 || m.Index+n > length {
			return outOfRange(m, length)
		}
		values := removedValues(m)
		for i := 0; i < n; i++ {
			s := t.tree.DeleteAt(m.Index)
			if s.orig < 0 {
				continue
			}
			t.origs = append(t.origs, s.orig)
			if values != nil {
				t.removed[s.orig] = values[i]
			}
		}
	}
	return nil
}

// Delta returns the removes and inserts accumulated so far.
func (t *TreeAccumulator) Delta() Delta {
	var d Delta
	if len(t.origs) > 0 {
		d.Removes = append([]int(nil), t.origs...)
		sort.Sort(sort.Reverse(sort.IntSlice(d.Removes)))
	}
	t.tree.Each(func(i int, s slot) bool {
		if s.orig < 0 {
			d.Inserts = append(d.Inserts, i)
		}
		return true
	})
	return d
}

// RemovedValue returns the recorded value of the removed original index.
func (t *TreeAccumulator) RemovedValue(orig int) (any, bool) {
	v, ok := t.removed[orig]
	return v, ok
}
