package arraydelta

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strs(s ...string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func TestConcreteScenario(t *testing.T) {
	pre := strs("a", "b", "c", "d", "e", "f")
	post := strs("c", "a", "d", "x", "e")

	muts := []Mutation{
		{Index: 1, SizeDelta: -2, Removed: strs("b", "c")},
		{Index: 2, SizeDelta: 1},
		{Index: 0, SizeDelta: 1},
		{Index: 5, SizeDelta: -1, Removed: strs("f")},
	}

	for _, acc := range []Recorder{NewAccumulator(len(pre)), NewTreeAccumulator(len(pre))} {
		for _, m := range muts {
			require.NoError(t, acc.Record(m))
		}
		assert.Equal(t, len(post), acc.Len())

		d := acc.Delta()
		assert.Equal(t, []int{5, 2, 1}, d.Removes)
		assert.Equal(t, []int{0, 3}, d.Inserts)

		d = AddMoves(d,
			func(orig int) any { v, _ := acc.RemovedValue(orig); return v },
			func(pos int) any { return post[pos] },
		)
		assert.Equal(t, []int{5, ^2, 1}, d.Removes)
		assert.Equal(t, []int{^0, 3}, d.Inserts)
		assert.Equal(t, []int{0}, d.AuxOrder)
		assert.Equal(t, 1, d.Moves())

		got, err := Apply(pre, d, func(pos int) any { return post[pos] })
		require.NoError(t, err)
		assert.Equal(t, post, got)
	}
}

func TestSpliceScenarios(t *testing.T) {
	tests := []struct {
		name    string
		pre     []any
		muts    []Mutation
		post    []any
		removes []int
		inserts []int
	}{
		{
			name:    "replace one element",
			pre:     strs("a", "b", "c", "d", "e", "f"),
			muts:    []Mutation{{Index: 1, SizeDelta: -1, Removed: strs("b")}, {Index: 1, SizeDelta: 1}},
			post:    strs("a", "aa", "c", "d", "e", "f"),
			removes: []int{1},
			inserts: []int{1},
		},
		{
			name:    "append to empty",
			pre:     nil,
			muts:    []Mutation{{Index: 0, SizeDelta: 2}},
			post:    strs("x", "y"),
			inserts: []int{0, 1},
		},
		{
			name:    "truncate",
			pre:     strs("a", "b", "c"),
			muts:    []Mutation{{Index: 1, SizeDelta: -2, Removed: strs("b", "c")}},
			post:    strs("a"),
			removes: []int{2, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, acc := range []Recorder{NewAccumulator(len(tt.pre)), NewTreeAccumulator(len(tt.pre))} {
				for _, m := range tt.muts {
					require.NoError(t, acc.Record(m))
				}
				d := acc.Delta()
				assert.Equal(t, tt.removes, d.Removes)
				assert.Equal(t, tt.inserts, d.Inserts)
				assert.Empty(t, d.AuxOrder)

				got, err := Apply(tt.pre, d, func(pos int) any { return tt.post[pos] })
				require.NoError(t, err)
				assert.Equal(t, tt.post, got)
			}
		})
	}
}

func TestInsertsMergeAdjacentRuns(t *testing.T) {
	acc := NewAccumulator(4)
	require.NoError(t, acc.Record(Mutation{Index: 2, SizeDelta: 1}))
	require.NoError(t, acc.Record(Mutation{Index: 3, SizeDelta: 2}))
	require.NoError(t, acc.Record(Mutation{Index: 2, SizeDelta: 1}))
	assert.Equal(t, 3, acc.Runs())

	// Deleting across inserted and unchanged runs records only the
	// original part.
	require.NoError(t, acc.Record(Mutation{Index: 1, SizeDelta: -3}))
	d := acc.Delta()
	assert.Equal(t, []int{1}, d.Removes)
	assert.Equal(t, []int{1, 2}, d.Inserts)
}

func TestDeleteInsertedIsInvisible(t *testing.T) {
	acc := NewAccumulator(3)
	require.NoError(t, acc.Record(Mutation{Index: 1, SizeDelta: 2}))
	require.NoError(t, acc.Record(Mutation{Index: 1, SizeDelta: -2}))
	assert.True(t, acc.Delta().Empty())
}

func TestOutOfRangeMutation(t *testing.T) {
	tests := []struct {
		name string
		m    Mutation
	}{
		{"insert past end", Mutation{Index: 4, SizeDelta: 1}},
		{"negative insert", Mutation{Index: -1, SizeDelta: 1}},
		{"remove past end", Mutation{Index: 2, SizeDelta: -2}},
		{"remove negative", Mutation{Index: -1, SizeDelta: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, acc := range []Recorder{NewAccumulator(3), NewTreeAccumulator(3)} {
				err := acc.Record(tt.m)
				assert.ErrorIs(t, err, ErrOutOfRangeMutation)
				assert.Equal(t, 3, acc.Len())
			}
		})
	}
}

func TestApplyRejectsInconsistentDeltas(t *testing.T) {
	pre := strs("a", "b", "c")
	none := func(int) any { return "new" }

	tests := []struct {
		name string
		d    Delta
	}{
		{"removes not descending", Delta{Removes: []int{0, 1}}},
		{"remove out of range", Delta{Removes: []int{3}}},
		{"inserts not ascending", Delta{Inserts: []int{1, 1}}},
		{"insert out of range", Delta{Inserts: []int{4}}},
		{"move without aux order", Delta{Removes: []int{^0}, Inserts: []int{^1}}},
		{"aux slot missing", Delta{Removes: []int{^0}, Inserts: []int{^1}, AuxOrder: []int{1}}},
		{"aux slot reused", Delta{Removes: []int{^1, ^0}, Inserts: []int{^0, ^1}, AuxOrder: []int{0, 0}}},
		{"aux slot never consumed", Delta{Removes: []int{^0}}},
		{"extra aux order", Delta{AuxOrder: []int{0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(pre, tt.d, none)
			assert.ErrorIs(t, err, ErrInconsistentDeltaUsage)
		})
	}
}

func TestAddMovesByReference(t *testing.T) {
	m1 := map[string]any{"id": 1}
	m2 := map[string]any{"id": 1}
	pre := []any{m1, m2}
	post := []any{m2, map[string]any{"id": 1}}

	// m1 removed at 0, m2 kept, a fresh equal map inserted: no move.
	d := Delta{Removes: []int{0}, Inserts: []int{1}}
	assert.Equal(t, d, AddDeltaMoves(d, pre, post))

	// m1 moved to the end.
	post = []any{m2, m1}
	d = AddDeltaMoves(Delta{Removes: []int{0}, Inserts: []int{1}}, pre, post)
	assert.Equal(t, []int{^0}, d.Removes)
	assert.Equal(t, []int{^1}, d.Inserts)

	got, err := Apply(pre, d, func(pos int) any { return post[pos] })
	require.NoError(t, err)
	assert.Equal(t, post, got)
}

func TestAddMovesSkipsUnmatchable(t *testing.T) {
	pre := []any{[]int{1}, nil}
	post := []any{[]int{1}, nil}
	d := Delta{Removes: []int{1, 0}, Inserts: []int{0, 1}}
	assert.Equal(t, d, AddDeltaMoves(d, pre, post))
}

// TestRandomRoundTrip replays random splices against arrays of growing
// size, cross-checks both accumulators and verifies that applying the
// delta, with and without moves, reproduces the final array.
func TestRandomRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, size := range []int{0, 1, 2, 10, 100, 1000, 10000} {
		for trial := 0; trial < 5; trial++ {
			t.Run(fmt.Sprintf("size=%d/trial=%d", size, trial), func(t *testing.T) {
				roundTrip(t, rng, size)
			})
		}
	}
}

func roundTrip(t *testing.T, rng *rand.Rand, size int) {
	pre := make([]any, size)
	for i := range pre {
		pre[i] = fmt.Sprintf("v%d", i)
	}
	cur := slices.Clone(pre)
	fresh := 0
	var graveyard []any

	list := NewAccumulator(size)
	tree := NewTreeAccumulator(size)

	steps := 1 + rng.Intn(40)
	for s := 0; s < steps; s++ {
		var m Mutation
		if len(cur) == 0 || rng.Intn(2) == 0 {
			n := 1 + rng.Intn(4)
			at := rng.Intn(len(cur) + 1)
			vals := make([]any, n)
			for i := range vals {
				if len(graveyard) > 0 && rng.Intn(3) == 0 {
					k := rng.Intn(len(graveyard))
					vals[i] = graveyard[k]
					graveyard = slices.Delete(graveyard, k, k+1)
					continue
				}
				fresh++
				vals[i] = fmt.Sprintf("n%d", fresh)
			}
			cur = slices.Insert(cur, at, vals...)
			m = Mutation{Index: at, SizeDelta: n}
		} else {
			at := rng.Intn(len(cur))
			n := 1 + rng.Intn(min(5, len(cur)-at))
			removed := slices.Clone(cur[at : at+n])
			graveyard = append(graveyard, removed...)
			cur = slices.Delete(cur, at, at+n)
			m = Mutation{Index: at, SizeDelta: -n, Removed: removed}
		}
		require.NoError(t, list.Record(m))
		require.NoError(t, tree.Record(m))
	}

	d := list.Delta()
	require.Equal(t, d, tree.Delta(), "accumulators disagree")
	assert.True(t, slices.IsSortedFunc(d.Removes, func(a, b int) int { return b - a }))
	assert.True(t, slices.IsSorted(d.Inserts))

	post := cur
	insertedAt := func(pos int) any { return post[pos] }

	got, err := Apply(pre, d, insertedAt)
	require.NoError(t, err)
	require.Equal(t, post, got)

	withMoves := AddMoves(d,
		func(orig int) any { v, _ := list.RemovedValue(orig); return v },
		insertedAt,
	)
	got, err = Apply(pre, withMoves, insertedAt)
	require.NoError(t, err)
	require.Equal(t, post, got)
	require.Equal(t, withMoves, AddDeltaMoves(d, pre, post))
}

func BenchmarkAccumulator(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < b.N; i++ {
		acc := NewAccumulator(10000)
		for j := 0; j < 100; j++ {
			if rng.Intn(2) == 0 {
				_ = acc.Record(Mutation{Index: rng.Intn(acc.Len() + 1), SizeDelta: 1})
			} else {
				_ = acc.Record(Mutation{Index: rng.Intn(acc.Len()), SizeDelta: -1})
			}
		}
		_ = acc.Delta()
	}
}
