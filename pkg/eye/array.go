package eye

import (
	"github.com/vango-dev/eyes/pkg/arraydelta"
	"github.com/vango-dev/eyes/pkg/delta"
)

// arrayState is the per-consumer mutation log of one sequence.
type arrayState struct {
	current []arraydelta.Mutation
	next    []arraydelta.Mutation
}

func (s *arrayState) StartRun() {
	s.current, s.next = s.next, nil
}

func (s *arrayState) FinishRun() {
	s.current = nil
}

func (s *arrayState) record(m arraydelta.Mutation) {
	s.next = append(s.next, m)
}

func (s *arrayState) consume() []arraydelta.Mutation {
	s.current = append(s.current, s.next...)
	s.next = nil
	return s.current
}

func newArrayState() delta.State {
	return &arrayState{}
}

// ArrayDelta returns the edit script that turns q as the current consumer
// last saw it into q as it is now, with moves detected between removed
// and inserted values. The first call in a consumer, and any call outside
// a run, reports every element as inserted.
//
// The call depends on q through a single delta-read; reading the inserted
// elements is up to the caller.
func ArrayDelta(q *Seq) arraydelta.Delta {
	s := q.store
	ctx := s.broker.Current()
	if ctx == nil {
		q.store.ledger.NotifyKeyRead(q.path)
		return allInserted(len(*q.raw))
	}
	st, created := ctx.State(q.id, newArrayState)
	s.ledger.NotifyDeltaRead(q.path)
	if created {
		return allInserted(len(*q.raw))
	}

	muts := st.(*arrayState).consume()
	if len(muts) == 0 {
		return arraydelta.Delta{}
	}
	orig := len(*q.raw)
	for _, m := range muts {
		orig -= m.SizeDelta
	}
	acc := arraydelta.NewAccumulator(orig)
	for _, m := range muts {
		if err := acc.Record(m); err != nil {
			// The log only holds mutations the Seq itself applied.
			panic(err)
		}
	}
	return arraydelta.AddMoves(acc.Delta(),
		func(i int) any {
			v, _ := acc.RemovedValue(i)
			return v
		},
		q.Peek,
	)
}

func allInserted(n int) arraydelta.Delta {
	if n == 0 {
		return arraydelta.Delta{}
	}
	d := arraydelta.Delta{Inserts: make([]int, n)}
	for i := range d.Inserts {
		d.Inserts[i] = i
	}
	return d
}
