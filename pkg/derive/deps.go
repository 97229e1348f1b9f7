package derive

import (
	"slices"
	"sort"

	"github.com/vango-dev/eyes/pkg/path"
)

type depKind uint8

const (
	// exact dependencies are woken by writes to the path itself or to
	// any of its ancestors (the value was replaced wholesale).
	exact depKind = iota
	// subtree dependencies are additionally woken by writes anywhere
	// below the path.
	subtree
)

type dep struct {
	path *path.Path
	kind depKind
}

// subscription holds the nodes subscribed to one path.
type subscription struct {
	exact   map[uint32]struct{}
	subtree map[uint32]struct{}
}

func (s *subscription) empty() bool {
	return len(s.exact) == 0 && len(s.subtree) == 0
}

// diff replaces the dependency set of id with the one collected by its
// latest run, subscribing and unsubscribing only the difference.
func (g *Graph) diff(id uint32) {
	s := &g.slots[id]
	next := s.next
	s.next = nil
	for d := range s.deps {
		if _, ok := next[d]; !ok {
			g.unsubscribe(d, id)
		}
	}
	for d := range next {
		if _, ok := s.deps[d]; !ok {
			g.subscribe(d, id)
		}
	}
	s.deps = next
}

func (g *Graph) subscribe(d dep, id uint32) {
	sub := g.subs[d.path]
	if sub == nil {
		sub = &subscription{}
		g.subs[d.path] = sub
		g.indexAdd(d.path)
	}
	switch d.kind {
	case exact:
		if sub.exact == nil {
			sub.exact = make(map[uint32]struct{})
		}
		sub.exact[id] = struct{}{}
	case subtree:
		if sub.subtree == nil {
			sub.subtree = make(map[uint32]struct{})
		}
		sub.subtree[id] = struct{}{}
	}
}

func (g *Graph) unsubscribe(d dep, id uint32) {
	sub := g.subs[d.path]
	if sub == nil {
		return
	}
	switch d.kind {
	case exact:
		delete(sub.exact, id)
	case subtree:
		delete(sub.subtree, id)
	}
	if sub.empty() {
		delete(g.subs, d.path)
		g.indexRemove(d.path)
	}
}

// Paths at or below p occupy one contiguous range of the index.
func (g *Graph) search(hash string) int {
	return sort.Search(len(g.index), func(i int) bool { return g.index[i].Hash() >= hash })
}

func (g *Graph) indexAdd(p *path.Path) {
	i := g.search(p.Hash())
	g.index = slices.Insert(g.index, i, p)
}

func (g *Graph) indexRemove(p *path.Path) {
	if i := g.search(p.Hash()); i < len(g.index) && g.index[i] == p {
		g.index = slices.Delete(g.index, i, i+1)
	}
}

// invalidate schedules every node affected by a write to w: any
// subscriber of w or of a path below w, and subtree subscribers of the
// ancestors of w. Running nodes outside the innermost one that already
// read what w overwrites are marked dirty.
func (g *Graph) invalidate(w *path.Path) {
	g.markDirty(w)
	var wake []uint32
	after := path.HashAfterLastDescendant(w)
	for i := g.search(w.Hash()); i < len(g.index) && g.index[i].Hash() < after; i++ {
		sub := g.subs[g.index[i]]
		for id := range sub.exact {
			wake = append(wake, id)
		}
		for id := range sub.subtree {
			wake = append(wake, id)
		}
	}
	for a := w.Parent(); a != nil; a = a.Parent() {
		if sub := g.subs[a]; sub != nil {
			for id := range sub.subtree {
				wake = append(wake, id)
			}
		}
	}
	for _, id := range wake {
		g.schedule(id)
	}
	if len(wake) > 0 {
		g.kick()
	}
}

func (g *Graph) markDirty(w *path.Path) {
	if len(g.stack) < 2 {
		return
	}
	for _, id := range g.stack[:len(g.stack)-1] {
		s := &g.slots[id]
		if s.dirty {
			continue
		}
		for d := range s.next {
			if reaches(w, d) {
				s.dirty = true
				break
			}
		}
	}
}

// reaches reports whether a write to w wakes d.
func reaches(w *path.Path, d dep) bool {
	return w.Contains(d.path) || (d.kind == subtree && d.path.Contains(w))
}
