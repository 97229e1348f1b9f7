package eyes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/eyes/pkg/arraydelta"
	"github.com/vango-dev/eyes/pkg/derive"
	"github.com/vango-dev/eyes/pkg/eye"
	"github.com/vango-dev/eyes/pkg/ledger"
	"github.com/vango-dev/eyes/pkg/path"
)

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := New(append([]Option{WithLogger(quiet)}, opts...)...)
	t.Cleanup(rt.Close)
	return rt
}

type readCounter struct {
	reads int
}

func (c *readCounter) OnRead(*path.Path)      { c.reads++ }
func (c *readCounter) OnKeyRead(*path.Path)   { c.reads++ }
func (c *readCounter) OnWrite(*path.Path)     {}
func (c *readCounter) OnDeltaRead(*path.Path) {}

func TestLookupSum(t *testing.T) {
	rt := newRuntime(t)
	rec := rt.MustWrap(map[string]any{"a": 1, "b": 2}, "rec").(*eye.Record)

	sum := 0
	var sums []int
	node := rt.Derive(func() {
		for _, c := range eye.LookupDelta(rec) {
			if c.HadPrev {
				sum -= c.Prev.(int)
			}
			if c.HasNext {
				sum += c.Next.(int)
			}
		}
		sums = append(sums, sum)
	}, derive.Options{Name: "sum"})

	for _, write := range []func(){
		func() { rec.Set("c", 1) },
		func() { rec.Delete("c") },
		func() { rec.Set("a", 6) },
		func() { rec.Set("d", 2) },
	} {
		write()
		require.NoError(t, rt.Flush())
	}

	assert.Equal(t, []int{3, 4, 3, 8, 10}, sums)
	assert.Equal(t, uint64(5), node.Runs())
}

func TestWritesRunDependentsOnceOnFlush(t *testing.T) {
	rt := newRuntime(t)
	rec := rt.MustWrap(map[string]any{"a": 1, "b": 1}, "pair").(*eye.Record)

	var seen [][]any
	rt.Derive(func() {
		seen = append(seen, []any{rec.Get("a"), rec.Get("b")})
	}, derive.Options{})

	rec.Set("a", 2)
	rec.Set("b", 2)
	assert.Len(t, seen, 1)
	assert.Equal(t, 1, rt.Graph().Pending())

	require.NoError(t, rt.Flush())
	assert.Equal(t, [][]any{{1, 1}, {2, 2}}, seen)
}

func TestImmediateRerunsAfterEachWrite(t *testing.T) {
	rt := newRuntime(t, WithImmediate())
	rec := rt.MustWrap(map[string]any{"a": 1, "b": 1}, "pair").(*eye.Record)

	var seen [][]any
	rt.Derive(func() {
		seen = append(seen, []any{rec.Get("a"), rec.Get("b")})
	}, derive.Options{})

	rec.Set("a", 2)
	rec.Set("b", 2)
	assert.Equal(t, [][]any{{1, 1}, {2, 1}, {2, 2}}, seen)
}

func TestLookupIgnoresNetNoops(t *testing.T) {
	rt := newRuntime(t)
	rec := rt.MustWrap(map[string]any{"a": 1}, "rec").(*eye.Record)

	var seen []map[string]eye.Change
	rt.Derive(func() {
		seen = append(seen, eye.LookupDelta(rec))
	}, derive.Options{})

	rt.Batch(func() {
		rec.Set("a", 2)
		rec.Set("a", 1)
		rec.Set("tmp", true)
		rec.Delete("tmp")
	})

	require.Len(t, seen, 2)
	assert.Empty(t, seen[1])
}

func TestLookupMinimality(t *testing.T) {
	const n = 1000
	rt := newRuntime(t)
	raw := make(map[string]any, n)
	for i := 0; i < n; i++ {
		raw[fmt.Sprintf("k%04d", i)] = i
	}
	rec := rt.MustWrap(raw, "big").(*eye.Record)

	counter := &readCounter{}
	cancel := rt.Observe(counter)
	defer cancel()

	sum := 0
	rt.Derive(func() {
		for _, c := range eye.LookupDelta(rec) {
			if c.HadPrev {
				sum -= c.Prev.(int)
			}
			if c.HasNext {
				sum += c.Next.(int)
			}
		}
	}, derive.Options{})
	initial := counter.reads
	require.GreaterOrEqual(t, initial, n)

	counter.reads = 0
	rec.Set("k0007", 1007)
	require.NoError(t, rt.Flush())
	assert.Less(t, counter.reads, initial/10)
	assert.Equal(t, n*(n-1)/2+1000, sum)
}

func TestArrayMirror(t *testing.T) {
	rt := newRuntime(t)
	items := []any{"a", "b", "c", "d", "e", "f"}
	seq := rt.MustWrap(&items, "list").(*eye.Seq)

	var mirror []any
	var last arraydelta.Delta
	rt.Derive(func() {
		d := eye.ArrayDelta(seq)
		last = d
		next, err := arraydelta.Apply(mirror, d, seq.Get)
		require.NoError(t, err)
		mirror = next
	}, derive.Options{Name: "mirror"})
	require.Equal(t, items, mirror)

	rt.Batch(func() {
		seq.Splice(2, 1)
		seq.Splice(1, 1, "x")
		seq.Push(seq.Shift())
	})
	assert.Equal(t, seq.Values(), mirror)
	assert.Equal(t, 1, last.Moves())

	seq.Set(2, "y")
	require.NoError(t, rt.Flush())
	assert.Equal(t, seq.Values(), mirror)

	seq.SetLen(2)
	require.NoError(t, rt.Flush())
	assert.Equal(t, seq.Values(), mirror)

	seq.Unshift("p", "q")
	require.NoError(t, rt.Flush())
	assert.Equal(t, []any{"p", "q", "x", "d"}, mirror)
}

func TestArrayMinimality(t *testing.T) {
	const n = 2000
	rt := newRuntime(t)
	items := make([]any, n)
	for i := range items {
		items[i] = i
	}
	seq := rt.MustWrap(&items, "nums").(*eye.Seq)

	counter := &readCounter{}
	cancel := rt.Observe(counter)
	defer cancel()

	var mirror []any
	rt.Derive(func() {
		next, err := arraydelta.Apply(mirror, eye.ArrayDelta(seq), seq.Get)
		require.NoError(t, err)
		mirror = next
	}, derive.Options{})
	initial := counter.reads

	counter.reads = 0
	seq.Splice(n/2, 3, "x", "y")
	require.NoError(t, rt.Flush())
	assert.Less(t, counter.reads, initial/10)
	assert.Equal(t, n-1, len(mirror))
	assert.Equal(t, seq.Values(), mirror)
}

func TestNestedEyesRerunOnReplace(t *testing.T) {
	rt := newRuntime(t)
	root := rt.MustWrap(map[string]any{
		"user": map[string]any{"name": "ada"},
	}, "app").(*eye.Record)

	var names []any
	rt.Derive(func() {
		user := root.Get("user").(*eye.Record)
		names = append(names, user.Get("name"))
	}, derive.Options{})

	root.Get("user").(*eye.Record).Set("name", "grace")
	require.NoError(t, rt.Flush())
	root.Set("user", map[string]any{"name": "linus"})
	require.NoError(t, rt.Flush())
	assert.Equal(t, []any{"ada", "grace", "linus"}, names)
}

func TestCascadeBudgetSurfacesOnFlush(t *testing.T) {
	rt := newRuntime(t, WithMaxRunsPerDrain(20))
	rec := rt.MustWrap(map[string]any{"x": 0, "y": 0}, "loop").(*eye.Record)

	rt.Derive(func() { rec.Set("y", rec.Get("x").(int)+1) }, derive.Options{Name: "inc-y"})
	rt.Derive(func() { rec.Set("x", rec.Get("y").(int)+1) }, derive.Options{Name: "inc-x"})

	err := rt.FlushContext(context.Background())
	assert.ErrorIs(t, err, derive.ErrCascadeBudget)
}

func TestMetricsWiring(t *testing.T) {
	reg := prometheus.NewRegistry()
	rt := newRuntime(t, WithMetrics(reg, "it"))
	rec := rt.MustWrap(map[string]any{"a": 1}, "m").(*eye.Record)

	rt.Derive(func() { eye.LookupDelta(rec) }, derive.Options{})
	cancel := rt.Observe(ledger.Funcs{Write: func(*path.Path) { panic("observer bug") }})
	rec.Set("a", 2)
	cancel()
	require.NoError(t, rt.Flush())

	families, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				got[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				got[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), got["it_derived_runs_total"])
	assert.Equal(t, float64(1), got["it_derived_nodes"])
	assert.Equal(t, float64(1), got["it_delta_states"])
	assert.GreaterOrEqual(t, got["it_observer_failures_total"], float64(1))
}

func TestDeferredHost(t *testing.T) {
	var posted []func()
	rt := newRuntime(t, WithDefer(func(fn func()) { posted = append(posted, fn) }))
	rec := rt.MustWrap(map[string]any{"a": 1}, "d").(*eye.Record)

	var got []any
	rt.Derive(func() { got = append(got, rec.Get("a")) }, derive.Options{})
	rec.Set("a", 2)
	rec.Set("a", 3)
	require.Len(t, posted, 1)
	posted[0]()
	assert.Equal(t, []any{1, 3}, got)
}
