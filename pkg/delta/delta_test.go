package delta

import "testing"

type countingState struct {
	starts, finishes int
	pushes           []string
}

func (s *countingState) StartRun()  { s.starts++ }
func (s *countingState) FinishRun() { s.finishes++ }

func newCounting() State { return &countingState{} }

func TestStateLifecycle(t *testing.T) {
	b := NewBroker()
	c := b.NewContext("consumer")

	c.Begin()
	if b.Current() != c {
		t.Fatal("Current() should be the running context")
	}
	s, created := c.State("list", newCounting)
	if !created {
		t.Fatal("first access should create the state")
	}
	c.End()

	if b.Current() != nil {
		t.Error("Current() should be nil after End")
	}
	cs := s.(*countingState)
	if cs.starts != 0 || cs.finishes != 1 {
		t.Errorf("starts=%d finishes=%d, want 0/1", cs.starts, cs.finishes)
	}

	c.Begin()
	again, created := c.State("list", newCounting)
	c.End()
	if created || again != s {
		t.Error("state should persist across runs while accessed")
	}
	if cs.starts != 1 || cs.finishes != 2 {
		t.Errorf("starts=%d finishes=%d, want 1/2", cs.starts, cs.finishes)
	}
}

func TestUnaccessedStatesArePurged(t *testing.T) {
	b := NewBroker()
	c := b.NewContext("consumer")

	c.Begin()
	c.State("a", newCounting)
	c.State("b", newCounting)
	c.End()
	if b.Len() != 2 || c.Len() != 2 {
		t.Fatalf("Len() broker=%d ctx=%d, want 2/2", b.Len(), c.Len())
	}

	c.Begin()
	c.State("a", newCounting)
	c.End()

	if c.Len() != 1 || b.Len() != 1 {
		t.Errorf("Len() broker=%d ctx=%d, want 1/1", b.Len(), c.Len())
	}
	if b.Watched("b") {
		t.Error("purged identity should leave the index")
	}

	// Re-accessing a purged identity starts from scratch.
	c.Begin()
	_, created := c.State("b", newCounting)
	c.End()
	if !created {
		t.Error("purged state should be recreated")
	}
}

func TestEachReachesEveryWatcher(t *testing.T) {
	b := NewBroker()
	c1 := b.NewContext(1)
	c2 := b.NewContext(2)

	for _, c := range []*Context{c1, c2} {
		c.Begin()
		c.State("list", newCounting)
		c.End()
	}

	n := 0
	b.Each("list", func(s State) {
		s.(*countingState).pushes = append(s.(*countingState).pushes, "x")
		n++
	})
	if n != 2 {
		t.Errorf("Each visited %d states, want 2", n)
	}
	b.Each("missing", func(State) { t.Error("unexpected state") })
}

func TestNestedContextsAreIndependent(t *testing.T) {
	b := NewBroker()
	outer := b.NewContext("outer")
	inner := b.NewContext("inner")

	outer.Begin()
	outer.State("x", newCounting)

	inner.Begin()
	if b.Current() != inner {
		t.Fatal("inner context should be current")
	}
	inner.State("y", newCounting)
	inner.End()

	if b.Current() != outer {
		t.Fatal("outer context should be current again")
	}
	outer.End()

	if outer.Len() != 1 || inner.Len() != 1 {
		t.Errorf("outer=%d inner=%d, want 1/1", outer.Len(), inner.Len())
	}
	if _, created := outer.State("y", newCounting); !created {
		t.Error("outer should not see inner's state")
	}
}

func TestCloseDropsStates(t *testing.T) {
	b := NewBroker()
	c := b.NewContext("consumer")

	c.Begin()
	c.State("a", newCounting)
	c.End()

	c.Close()
	if b.Len() != 0 || c.Len() != 0 {
		t.Errorf("Len() broker=%d ctx=%d, want 0/0", b.Len(), c.Len())
	}

	c.Begin()
	if c.Active() || b.Current() != nil {
		t.Error("closed context should ignore Begin")
	}
	c.End()
	c.Close()
}

func TestCloseWhileActive(t *testing.T) {
	b := NewBroker()
	c := b.NewContext("consumer")

	c.Begin()
	c.State("a", newCounting)
	c.Close()

	if b.Current() != nil {
		t.Error("closing an active context should pop it")
	}
	if b.Len() != 0 {
		t.Errorf("broker Len() = %d, want 0", b.Len())
	}
	c.End()
}
