package main

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/vango-dev/eyes"
	"github.com/vango-dev/eyes/internal/errors"
	"github.com/vango-dev/eyes/pkg/arraydelta"
	"github.com/vango-dev/eyes/pkg/derive"
	"github.com/vango-dev/eyes/pkg/eye"
	"github.com/vango-dev/eyes/pkg/path"
)

func benchCmd(load loader) *cobra.Command {
	var (
		size int
		ops  int
		seed int64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure reads saved by incremental consumers",
		Long: `Build a sequence and a record of the given size, attach an incremental
consumer to each, apply random mutations in one batch and report how
many store reads the consumer made initially and incrementally.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := load(cmd)
			if err != nil {
				return err
			}
			results := []benchResult{
				arrayBench(size, ops, seed, logger),
				lookupBench(size, ops, seed, logger),
			}
			printBench(cmd.OutOrStdout(), results)
			for _, r := range results {
				if !r.Consistent {
					return errors.New(errors.CodeInconsistentDeltaUsage).
						WithDetailf("%s consumer diverged from the store after %d mutations", r.Kind, r.Ops)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&size, "size", "n", 10000, "container size")
	cmd.Flags().IntVarP(&ops, "ops", "m", 10, "mutations per batch")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")

	return cmd
}

type benchResult struct {
	Kind        string
	Size        int
	Ops         int
	Initial     int
	Incremental int
	Consistent  bool
}

func (r benchResult) Ratio() float64 {
	if r.Initial == 0 {
		return 0
	}
	return float64(r.Incremental) / float64(r.Initial)
}

// readCounter counts reads and key-reads.
type readCounter struct {
	n int
}

func (c *readCounter) OnRead(*path.Path)      { c.n++ }
func (c *readCounter) OnKeyRead(*path.Path)   { c.n++ }
func (c *readCounter) OnWrite(*path.Path)     {}
func (c *readCounter) OnDeltaRead(*path.Path) {}

func arrayBench(size, ops int, seed int64, logger *slog.Logger) benchResult {
	rt := eyes.New(eyes.WithLogger(logger))
	defer rt.Close()
	rng := rand.New(rand.NewSource(seed))

	items := make([]any, size)
	for i := range items {
		items[i] = i
	}
	q := rt.MustWrap(&items, "bench").(*eye.Seq)
	counter := &readCounter{}
	defer rt.Observe(counter)()

	var mirror []any
	consistent := true
	rt.Derive(func() {
		next, err := arraydelta.Apply(mirror, eye.ArrayDelta(q), q.Get)
		if err != nil {
			consistent = false
			return
		}
		mirror = next
	}, derive.Options{Name: "mirror"})
	res := benchResult{Kind: "array", Size: size, Ops: ops, Initial: counter.n}

	counter.n = 0
	next := size
	rt.Batch(func() {
		for k := 0; k < ops; k++ {
			l := len(items)
			start := rng.Intn(l + 1)
			del := rng.Intn(min(3, l-start) + 1)
			ins := make([]any, rng.Intn(3))
			for i := range ins {
				ins[i] = next
				next++
			}
			q.Splice(start, del, ins...)
		}
	})
	res.Incremental = counter.n
	res.Consistent = consistent && reflect.DeepEqual(mirror, items)
	return res
}

func lookupBench(size, ops int, seed int64, logger *slog.Logger) benchResult {
	rt := eyes.New(eyes.WithLogger(logger))
	defer rt.Close()
	rng := rand.New(rand.NewSource(seed))

	raw := make(map[string]any, size)
	for i := 0; i < size; i++ {
		raw[fmt.Sprintf("k%06d", i)] = i
	}
	r := rt.MustWrap(raw, "bench").(*eye.Record)
	counter := &readCounter{}
	defer rt.Observe(counter)()

	sum := 0
	rt.Derive(func() {
		for _, c := range eye.LookupDelta(r) {
			if c.HadPrev {
				sum -= c.Prev.(int)
			}
			if c.HasNext {
				sum += c.Next.(int)
			}
		}
	}, derive.Options{Name: "sum"})
	res := benchResult{Kind: "lookup", Size: size, Ops: ops, Initial: counter.n}

	counter.n = 0
	rt.Batch(func() {
		for k := 0; k < ops; k++ {
			key := fmt.Sprintf("k%06d", rng.Intn(size+ops))
			if rng.Intn(4) == 0 {
				r.Delete(key)
			} else {
				r.Set(key, rng.Intn(1000))
			}
		}
	})
	res.Incremental = counter.n

	want := 0
	for _, v := range raw {
		want += v.(int)
	}
	res.Consistent = sum == want
	return res
}

func printBench(w io.Writer, results []benchResult) {
	fmt.Fprintf(w, "%-8s %8s %6s %10s %12s %8s\n", "kind", "size", "ops", "initial", "incremental", "ratio")
	for _, r := range results {
		fmt.Fprintf(w, "%-8s %8d %6d %10d %12d %8.4f\n", r.Kind, r.Size, r.Ops, r.Initial, r.Incremental, r.Ratio())
	}
}
