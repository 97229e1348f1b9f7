package eye

import (
	"github.com/vango-dev/eyes/pkg/delta"
)

// Change is the net change of one key since a consumer's previous run.
// HadPrev is false for an added key, HasNext false for a removed one.
type Change struct {
	Prev    any
	Next    any
	HadPrev bool
	HasNext bool
}

// Added reports whether the key did not exist before.
func (c Change) Added() bool { return !c.HadPrev && c.HasNext }

// Removed reports whether the key no longer exists.
func (c Change) Removed() bool { return c.HadPrev && !c.HasNext }

func (c Change) void() bool {
	if c.HadPrev != c.HasNext {
		return false
	}
	return !c.HadPrev || Same(c.Prev, c.Next)
}

// lookupState is the per-consumer change log of one record. Writes land
// in next; a run start promotes next to current.
type lookupState struct {
	current map[string]Change
	next    map[string]Change
}

func (s *lookupState) StartRun() {
	s.current, s.next = s.next, nil
}

func (s *lookupState) FinishRun() {
	s.current = nil
}

func (s *lookupState) record(key string, prev any, hadPrev bool, next any, hasNext bool) {
	s.next = fold(s.next, key, Change{Prev: prev, Next: next, HadPrev: hadPrev, HasNext: hasNext})
}

// consume moves pending writes into the current window and returns its
// net changes.
func (s *lookupState) consume() map[string]Change {
	for k, c := range s.next {
		s.current = fold(s.current, k, c)
	}
	s.next = nil

	out := make(map[string]Change, len(s.current))
	for k, c := range s.current {
		if !c.void() {
			out[k] = c
		}
	}
	return out
}

// fold logs c for key, keeping the oldest previous value.
func fold(log map[string]Change, key string, c Change) map[string]Change {
	if log == nil {
		log = make(map[string]Change)
	}
	if old, ok := log[key]; ok {
		old.Next, old.HasNext = c.Next, c.HasNext
		c = old
	}
	log[key] = c
	return log
}

// LookupDelta returns the keys of r that were added, removed or changed
// since the current consumer's previous run. The first call in a consumer,
// and any call outside a run, reports every key as added and depends on
// the whole record; later calls depend on r through a single delta-read.
// Values are returned raw.
func LookupDelta(r *Record) map[string]Change {
	s := r.store
	ctx := s.broker.Current()
	if ctx == nil {
		return r.scan()
	}
	st, created := ctx.State(r.id, newLookupState)
	if created {
		return r.scan()
	}
	s.ledger.NotifyDeltaRead(r.path)
	return st.(*lookupState).consume()
}

func newLookupState() delta.State {
	return &lookupState{}
}

// scan reads every key of r and reports it as added.
func (r *Record) scan() map[string]Change {
	keys := r.Keys()
	out := make(map[string]Change, len(keys))
	for _, k := range keys {
		r.read(r.childPath(k))
		out[k] = Change{Next: Unwrap(r.raw[k]), HasNext: true}
	}
	return out
}
