package derive

import (
	"container/heap"
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vango-dev/eyes/internal/errors"
)

type entry struct {
	depth string
	id    uint32
	gen   uint32
}

// queue is a min-heap of pending nodes ordered by depth key, so owners
// and earlier-declared nodes run before what they own or precede.
type queue []entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].depth != q[j].depth {
		return q[i].depth < q[j].depth
	}
	return q[i].id < q[j].id
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(entry)) }

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

// schedule queues a re-run of id. A node already pending, disposed or
// currently running is not queued again.
func (g *Graph) schedule(id uint32) {
	s := &g.slots[id]
	if !s.alive || s.pending || s.running {
		return
	}
	s.pending = true
	heap.Push(&g.queue, entry{depth: s.depth, id: id, gen: s.gen})
}

// Flush runs every pending re-run now and returns the drain's error, or
// the error of the last drain triggered by a write.
func (g *Graph) Flush() error {
	return g.FlushContext(context.Background())
}

// FlushContext is Flush inside a trace span.
func (g *Graph) FlushContext(ctx context.Context) error {
	_, span := g.tracer.Start(ctx, "eyes.derive.flush")
	defer span.End()

	runs, err := g.drain()
	if err == nil {
		err, g.lastErr = g.lastErr, nil
	}
	span.SetAttributes(
		attribute.Int("eyes.runs", runs),
		attribute.Int("eyes.alive", g.alive),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

func (g *Graph) drainLogged() {
	if _, err := g.drain(); err != nil {
		g.lastErr = err
	}
}

// drain runs queued nodes in depth order until the queue is empty. Work
// queued by the runs themselves is picked up by the same loop.
func (g *Graph) drain() (int, error) {
	if g.draining || len(g.stack) > 0 {
		return 0, nil
	}
	g.draining = true
	defer func() { g.draining = false }()

	runs := 0
	var err error
	for g.queue.Len() > 0 {
		e := heap.Pop(&g.queue).(entry)
		s := &g.slots[e.id]
		if !s.alive || s.gen != e.gen || !s.pending {
			continue
		}
		if g.maxRunsPerDrain > 0 && runs >= g.maxRunsPerDrain {
			s.pending = false
			dropped := g.abandon() + 1
			err = errors.New(errors.CodeCascadeBudgetExceeded).
				WithDetailf("%d runs in one drain, %d pending re-runs dropped", runs, dropped).
				WithSuggestion("look for derived nodes that write paths they read")
			g.logger.Error("drain aborted", "runs", runs, "dropped", dropped, "error", err)
			break
		}
		runs++
		g.run(e.id, e.gen)
	}

	if g.recorder != nil && (runs > 0 || err != nil) {
		g.recorder.DrainFinished(runs, err)
	}
	return runs, err
}

// abandon empties the queue and returns how many live entries it held.
func (g *Graph) abandon() int {
	n := 0
	for _, e := range g.queue {
		s := &g.slots[e.id]
		if s.alive && s.gen == e.gen && s.pending {
			s.pending = false
			n++
		}
	}
	g.queue = g.queue[:0]
	return n
}
