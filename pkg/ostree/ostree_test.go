package ostree

import (
	stderrors "errors"
	"math/rand"
	"testing"

	"github.com/vango-dev/eyes/internal/errors"
)

func TestInsertDeleteAgainstSlice(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tree := New[int]()
	var want []int
	var items []*Item[int]

	for step := 0; step < 5000; step++ {
		if len(want) == 0 || rng.Intn(3) > 0 {
			i := rng.Intn(len(want) + 1)
			it := tree.InsertAt(i, step)
			want = append(want[:i], append([]int{step}, want[i:]...)...)
			items = append(items, it)
		} else {
			i := rng.Intn(len(want))
			got := tree.DeleteAt(i)
			if got != want[i] {
				t.Fatalf("step %d: DeleteAt(%d) = %d, want %d", step, i, got, want[i])
			}
			want = append(want[:i], want[i+1:]...)
		}

		if step%97 == 0 {
			if err := tree.Check(); err != nil {
				t.Fatalf("step %d: %v", step, err)
			}
			if tree.Len() != len(want) {
				t.Fatalf("step %d: Len() = %d, want %d", step, tree.Len(), len(want))
			}
		}
	}

	if err := tree.Check(); err != nil {
		t.Fatal(err)
	}
	got := tree.Values()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Values()[%d] = %d, want %d", i, got[i], want[i])
		}
		if tree.At(i).Value != want[i] {
			t.Fatalf("At(%d) = %d, want %d", i, tree.At(i).Value, want[i])
		}
	}

	// Every live item must report its own position.
	for _, it := range items {
		pos := tree.Position(it)
		if !it.InTree() {
			if pos != -1 {
				t.Fatalf("removed item reports position %d", pos)
			}
			continue
		}
		if tree.At(pos) != it {
			t.Fatalf("Position() = %d does not round-trip", pos)
		}
	}
}

func TestDeleteItem(t *testing.T) {
	tree := New[string]()
	a := tree.InsertAt(0, "a")
	b := tree.InsertAt(1, "b")
	c := tree.InsertAt(2, "c")

	tree.Delete(b)
	tree.Delete(b)

	if tree.Len() != 2 || tree.Position(a) != 0 || tree.Position(c) != 1 {
		t.Errorf("Len=%d pos(a)=%d pos(c)=%d", tree.Len(), tree.Position(a), tree.Position(c))
	}
	if b.InTree() {
		t.Error("deleted item should not be in the tree")
	}
}

func TestEachStops(t *testing.T) {
	tree := New[int]()
	for i := 0; i < 10; i++ {
		tree.InsertAt(i, i)
	}
	var seen []int
	tree.Each(func(i, v int) bool {
		seen = append(seen, v)
		return i < 3
	})
	if len(seen) != 4 {
		t.Errorf("Each visited %v", seen)
	}
}

func TestOutOfRangePanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*Tree[int])
	}{
		{"insert past end", func(tr *Tree[int]) { tr.InsertAt(2, 0) }},
		{"delete past end", func(tr *Tree[int]) { tr.DeleteAt(1) }},
		{"negative at", func(tr *Tree[int]) { tr.At(-1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := New[int]()
			tree.InsertAt(0, 1)
			defer func() {
				err, ok := recover().(error)
				if !ok || !stderrors.Is(err, errors.New(errors.CodeOutOfRangeMutation)) {
					t.Errorf("recover() = %v", err)
				}
			}()
			tt.fn(tree)
		})
	}
}

func BenchmarkInsertAt(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	tree := New[int]()
	for i := 0; i < b.N; i++ {
		tree.InsertAt(rng.Intn(tree.Len()+1), i)
	}
}
