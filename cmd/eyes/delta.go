package main

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/eyes"
	"github.com/vango-dev/eyes/internal/errors"
	"github.com/vango-dev/eyes/pkg/arraydelta"
	"github.com/vango-dev/eyes/pkg/derive"
	"github.com/vango-dev/eyes/pkg/eye"
)

func deltaCmd(load loader) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "delta <scenario.yaml>",
		Short: "Compute the delta of a scripted mutation",
		Long: `Apply the ops of a YAML scenario to a sequence or a record in one
batch, and print the delta an incremental consumer receives.

For a sequence the delta is an edit script: removes in descending
original positions, inserts in ascending final positions, with moved
elements marked ^ and their aux order. For a record it is the set of
added, removed and changed keys.

The delta is replayed onto a mirror of the original container and the
command fails if the mirror does not match the result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			sc, err := loadScenario(args[0])
			if err != nil {
				return err
			}
			rt := eyes.New(
				eyes.WithLogger(logger),
				eyes.WithMaxRunsPerDrain(cfg.Scheduler.MaxRunsPerDrain),
			)
			defer rt.Close()

			var rep *report
			if sc.isSeq() {
				rep, err = seqDelta(rt, sc)
			} else {
				rep, err = recordDelta(rt, sc)
			}
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			rep.print(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return cmd
}

// report is the outcome of one scenario.
type report struct {
	Scenario string         `json:"scenario"`
	Before   any            `json:"before"`
	After    any            `json:"after"`
	Removes  []int          `json:"removes,omitempty"`
	Inserts  []int          `json:"inserts,omitempty"`
	AuxOrder []int          `json:"auxOrder,omitempty"`
	Moves    int            `json:"moves"`
	Changes  []changeReport `json:"changes,omitempty"`
	seq      bool
}

type changeReport struct {
	Key  string `json:"key"`
	Op   string `json:"op"`
	Prev any    `json:"prev,omitempty"`
	Next any    `json:"next,omitempty"`
}

func seqDelta(rt *eyes.Runtime, sc *Scenario) (*report, error) {
	items := normalizeAll(sc.Seq)
	q := rt.MustWrap(&items, sc.Name).(*eye.Seq)

	var (
		mirror   []any
		last     arraydelta.Delta
		applyErr error
		runs     int
	)
	rt.Derive(func() {
		d := eye.ArrayDelta(q)
		next, err := arraydelta.Apply(mirror, d, q.Peek)
		if err != nil {
			applyErr = err
			return
		}
		mirror = next
		if runs > 0 {
			last = d
		}
		runs++
	}, derive.Options{Name: "mirror"})

	before := snapshot(q)
	rt.Batch(func() { sc.applySeq(q) })
	if err := rt.Flush(); err != nil {
		return nil, err
	}
	if applyErr != nil {
		return nil, applyErr
	}
	after := snapshot(q)
	if !reflect.DeepEqual(plain(mirror), after) {
		return nil, errors.New(errors.CodeInconsistentDeltaUsage).
			WithDetailf("mirror %v does not match %v", plain(mirror), after)
	}

	return &report{
		Scenario: sc.Name,
		Before:   before,
		After:    after,
		Removes:  last.Removes,
		Inserts:  last.Inserts,
		AuxOrder: last.AuxOrder,
		Moves:    last.Moves(),
		seq:      true,
	}, nil
}

func recordDelta(rt *eyes.Runtime, sc *Scenario) (*report, error) {
	raw := eye.Normalize(sc.Record).(map[string]any)
	r := rt.MustWrap(raw, sc.Name).(*eye.Record)

	runs := 0
	var changes map[string]eye.Change
	rt.Derive(func() {
		c := eye.LookupDelta(r)
		if runs > 0 {
			changes = c
		}
		runs++
	}, derive.Options{Name: "lookup"})

	before := plain(clone(raw))
	rt.Batch(func() { sc.applyRecord(r) })
	if err := rt.Flush(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rep := &report{Scenario: sc.Name, Before: before, After: plain(raw)}
	for _, k := range keys {
		c := changes[k]
		cr := changeReport{Key: k, Prev: plain(c.Prev), Next: plain(c.Next)}
		switch {
		case c.Added():
			cr.Op = "added"
		case c.Removed():
			cr.Op = "removed"
		default:
			cr.Op = "changed"
		}
		rep.Changes = append(rep.Changes, cr)
	}
	return rep, nil
}

func (r *report) print(w io.Writer) {
	field(w, "scenario", r.Scenario)
	field(w, "before", r.Before)
	field(w, "after", r.After)
	if r.seq {
		field(w, "removes", indices(r.Removes))
		field(w, "inserts", indices(r.Inserts))
		field(w, "aux", fmt.Sprint(nonNil(r.AuxOrder)))
		field(w, "moves", r.Moves)
		return
	}
	if len(r.Changes) == 0 {
		field(w, "changes", "none")
		return
	}
	field(w, "changes", len(r.Changes))
	for _, c := range r.Changes {
		switch c.Op {
		case "added":
			fmt.Fprintf(w, "  + %s: %v\n", c.Key, c.Next)
		case "removed":
			fmt.Fprintf(w, "  - %s: %v\n", c.Key, c.Prev)
		default:
			fmt.Fprintf(w, "  ~ %s: %v -> %v\n", c.Key, c.Prev, c.Next)
		}
	}
}

// indices renders delta entries with moves marked ^.
func indices(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		idx, move := arraydelta.Decode(x)
		if move {
			parts[i] = fmt.Sprintf("^%d", idx)
		} else {
			parts[i] = fmt.Sprint(idx)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func nonNil(xs []int) []int {
	if xs == nil {
		return []int{}
	}
	return xs
}

// snapshot copies the elements of q without notifying the ledger.
func snapshot(q *eye.Seq) []any {
	n := len(*q.Raw().(*[]any))
	out := make([]any, n)
	for i := range out {
		out[i] = plain(q.Peek(i))
	}
	return out
}

// plain replaces sequence pointers with the sequences, recursively, so
// values print and compare by content.
func plain(v any) any {
	switch x := v.(type) {
	case *[]any:
		return plain(*x)
	case []any:
		out := make([]any, len(x))
		for i, c := range x {
			out[i] = plain(c)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, c := range x {
			out[k] = plain(c)
		}
		return out
	}
	return v
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
