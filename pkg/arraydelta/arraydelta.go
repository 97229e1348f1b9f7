package arraydelta

import (
	"fmt"
	"sort"

	"github.com/vango-dev/eyes/internal/errors"
)

var (
	// ErrOutOfRangeMutation is returned for a mutation whose index falls
	// outside the current conceptual length.
	ErrOutOfRangeMutation = errors.New(errors.CodeOutOfRangeMutation)

	// ErrInconsistentDeltaUsage is returned when a delta cannot be applied
	// as written, e.g. a move consumes an aux slot that does not exist.
	ErrInconsistentDeltaUsage = errors.New(errors.CodeInconsistentDeltaUsage)
)

// Mutation is one splice-equivalent change to an array. A negative
// SizeDelta removes -SizeDelta elements at Index, a positive one inserts
// SizeDelta new elements before Index. Index is relative to the array as
// it was when the mutation happened.
//
// Removed optionally carries the removed values, in order. Move detection
// uses them to pair removals with insertions of the same value.
type Mutation struct {
	Index     int
	SizeDelta int
	Removed   []any
}

// String renders m for logs, e.g. "remove 2 at 3".
func (m Mutation) String() string {
	if m.SizeDelta < 0 {
		return fmt.Sprintf("remove %d at %d", -m.SizeDelta, m.Index)
	}
	return fmt.Sprintf("insert %d at %d", m.SizeDelta, m.Index)
}

// Delta is an edit script from a pre-mutation array to a post-mutation
// array.
//
// Removes are indices into the pre-mutation array, sorted descending and
// applied first. Inserts are indices into the post-mutation array, sorted
// ascending and applied after all removes. A bit-complemented index (^i)
// marks one end of a move: a complemented remove pushes the removed value
// onto an aux stack, a complemented insert takes the value from the aux
// slot named by the next AuxOrder entry.
type Delta struct {
	Removes  []int
	Inserts  []int
	AuxOrder []int
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool {
	return len(d.Removes) == 0 && len(d.Inserts) == 0
}

// Moves returns the number of move pairs.
func (d Delta) Moves() int {
	return len(d.AuxOrder)
}

// Decode splits an entry of Removes or Inserts into its index and whether
// it is one end of a move.
func Decode(x int) (index int, move bool) {
	if x < 0 {
		return ^x, true
	}
	return x, false
}

// Recorder accumulates mutations against an original length and reports
// the resulting delta. Accumulator and TreeAccumulator implement it with
// identical results.
type Recorder interface {
	Record(m Mutation) error
	Len() int
	Delta() Delta
	RemovedValue(orig int) (any, bool)
}

type runKind uint8

const (
	unchanged runKind = iota
	inserted
)

// run is a contiguous stretch of the current array. An unchanged run maps
// to original indices [orig, orig+size); an inserted run holds elements
// that did not exist originally.
type run struct {
	kind runKind
	size int
	orig int
}

type removal struct {
	orig   int
	size   int
	values []any
}

// Accumulator is the range-list implementation of Recorder. The current
// array is partitioned into unchanged and inserted runs; each mutation
// splits, grows or shrinks runs, and deleting from an unchanged run is
// the only way an original removal is recorded.
type Accumulator struct {
	origLen  int
	length   int
	runs     []run
	removals []removal
}

// NewAccumulator returns an accumulator for an array of origLen elements.
func NewAccumulator(origLen int) *Accumulator {
	a := &Accumulator{origLen: origLen, length: origLen}
	if origLen > 0 {
		a.runs = []run{{kind: unchanged, size: origLen}}
	}
	return a
}

// Len returns the current conceptual length.
func (a *Accumulator) Len() int {
	return a.length
}

// Record applies one mutation.
func (a *Accumulator) Record(m Mutation) error {
	switch {
	case m.SizeDelta > 0:
		if m.Index < 0 || m.Index > a.length {
			return outOfRange(m, a.length)
		}
		a.insert(m.Index, m.SizeDelta)
	case m.SizeDelta < 0:
		n := -m.SizeDelta
		if m.Index < 0 || m.Index+n > a.length {
			return outOfRange(m, a.length)
		}
		a.delete(m.Index, n, removedValues(m))
	}
	return nil
}

func (a *Accumulator) insert(at, n int) {
	a.length += n
	pos := 0
	for i, r := range a.runs {
		if at == pos {
			switch {
			case i > 0 && a.runs[i-1].kind == inserted:
				a.runs[i-1].size += n
			case r.kind == inserted:
				a.runs[i].size += n
			default:
				a.runs = append(a.runs[:i], append([]run{{kind: inserted, size: n}}, a.runs[i:]...)...)
			}
			return
		}
		if at < pos+r.size {
			if r.kind == inserted {
				a.runs[i].size += n
				return
			}
			off := at - pos
			parts := []run{
				{kind: unchanged, size: off, orig: r.orig},
				{kind: inserted, size: n},
				{kind: unchanged, size: r.size - off, orig: r.orig + off},
			}
			a.runs = append(a.runs[:i], append(parts, a.runs[i+1:]...)...)
			return
		}
		pos += r.size
	}
	if last := len(a.runs) - 1; last >= 0 && a.runs[last].kind == inserted {
		a.runs[last].size += n
		return
	}
	a.runs = append(a.runs, run{kind: inserted, size: n})
}

func (a *Accumulator) delete(at, n int, values []any) {
	a.length -= n
	end := at + n
	out := make([]run, 0, len(a.runs)+1)
	pos := 0
	for _, r := range a.runs {
		rs, re := pos, pos+r.size
		pos = re
		lo, hi := max(rs, at), min(re, end)
		if lo >= hi {
			out = appendRun(out, r)
			continue
		}
		if r.kind == unchanged {
			rec := removal{orig: r.orig + (lo - rs), size: hi - lo}
			if values != nil {
				rec.values = values[lo-at : hi-at]
			}
			a.removals = append(a.removals, rec)
		}
		if lo > rs {
			out = appendRun(out, run{kind: r.kind, size: lo - rs, orig: r.orig})
		}
		if re > hi {
			out = appendRun(out, run{kind: r.kind, size: re - hi, orig: r.orig + (hi - rs)})
		}
	}
	a.runs = out
}

// appendRun appends r, merging it into a preceding inserted run.
func appendRun(runs []run, r run) []run {
	if r.size == 0 {
		return runs
	}
	if n := len(runs); n > 0 && r.kind == inserted && runs[n-1].kind == inserted {
		runs[n-1].size += r.size
		return runs
	}
	return append(runs, r)
}

// Delta returns the removes and inserts accumulated so far. Moves are not
// detected; see AddMoves.
func (a *Accumulator) Delta() Delta {
	var d Delta
	for _, rec := range a.removals {
		for i := 0; i < rec.size; i++ {
			d.Removes = append(d.Removes, rec.orig+i)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(d.Removes)))

	pos := 0
	for _, r := range a.runs {
		if r.kind == inserted {
			for i := 0; i < r.size; i++ {
				d.Inserts = append(d.Inserts, pos+i)
			}
		}
		pos += r.size
	}
	return d
}

// RemovedValue returns the recorded value of the removed original index.
func (a *Accumulator) RemovedValue(orig int) (any, bool) {
	for _, rec := range a.removals {
		if orig >= rec.orig && orig < rec.orig+rec.size && rec.values != nil {
			return rec.values[orig-rec.orig], true
		}
	}
	return nil, false
}

// Runs returns the number of runs in the range list.
func (a *Accumulator) Runs() int {
	return len(a.runs)
}

func removedValues(m Mutation) []any {
	if len(m.Removed) != -m.SizeDelta {
		return nil
	}
	return m.Removed
}

func outOfRange(m Mutation, length int) error {
	return errors.New(errors.CodeOutOfRangeMutation).
		WithDetailf("%s with current length %d", m, length)
}
