package ostree

import (
	"fmt"

	"github.com/vango-dev/eyes/internal/errors"
)

// Item is a handle to one element of a Tree. It stays valid while the
// element is in the tree, whatever rotations happen around it.
type Item[T any] struct {
	Value T
	n     *node[T]
}

// InTree reports whether the item is still stored in a tree.
func (it *Item[T]) InTree() bool {
	return it.n != nil
}

type node[T any] struct {
	left, right, parent *node[T]
	level               int
	size                int
	item                *Item[T]
}

// Tree is an order-statistics AA tree: a balanced binary tree whose
// in-order sequence is a list, indexed by position. Every node stores the
// size of its subtree, which gives O(log n) access by position and
// O(log n) position lookup for an Item.
//
// The zero value is an empty tree. A Tree is not safe for concurrent use.
type Tree[T any] struct {
	root *node[T]
}

// New returns an empty tree.
func New[T any]() *Tree[T] {
	return &Tree[T]{}
}

// Len returns the number of elements.
func (t *Tree[T]) Len() int {
	return size(t.root)
}

// InsertAt inserts v so that it ends up at position i, shifting later
// elements right. i must be in [0, Len()].
func (t *Tree[T]) InsertAt(i int, v T) *Item[T] {
	if i < 0 || i > t.Len() {
		panic(rangeError("InsertAt", i, t.Len()+1))
	}
	it := &Item[T]{Value: v}
	t.root = insert(t.root, i, it)
	t.root.parent = nil
	return it
}

// DeleteAt removes the element at position i and returns its value.
func (t *Tree[T]) DeleteAt(i int) T {
	if i < 0 || i >= t.Len() {
		panic(rangeError("DeleteAt", i, t.Len()))
	}
	var removed *Item[T]
	t.root = remove(t.root, i, &removed)
	if t.root != nil {
		t.root.parent = nil
	}
	removed.n = nil
	return removed.Value
}

// Delete removes it from the tree. It is a no-op for removed items.
func (t *Tree[T]) Delete(it *Item[T]) {
	if it.n == nil {
		return
	}
	t.DeleteAt(t.Position(it))
}

// At returns the item at position i.
func (t *Tree[T]) At(i int) *Item[T] {
	if i < 0 || i >= t.Len() {
		panic(rangeError("At", i, t.Len()))
	}
	n := t.root
	for {
		ls := size(n.left)
		switch {
		case i < ls:
			n = n.left
		case i > ls:
			i -= ls + 1
			n = n.right
		default:
			return n.item
		}
	}
}

// Position returns the current position of it, or -1 if it is no longer
// in the tree.
func (t *Tree[T]) Position(it *Item[T]) int {
	n := it.n
	if n == nil {
		return -1
	}
	pos := size(n.left)
	for ; n.parent != nil; n = n.parent {
		if n == n.parent.right {
			pos += size(n.parent.left) + 1
		}
	}
	return pos
}

// Each calls fn for every element in order until fn returns false.
func (t *Tree[T]) Each(fn func(i int, v T) bool) {
	i := 0
	var walk func(n *node[T]) bool
	walk = func(n *node[T]) bool {
		if n == nil {
			return true
		}
		if !walk(n.left) {
			return false
		}
		if !fn(i, n.item.Value) {
			return false
		}
		i++
		return walk(n.right)
	}
	walk(t.root)
}

// Values returns the elements in order.
func (t *Tree[T]) Values() []T {
	out := make([]T, 0, t.Len())
	t.Each(func(_ int, v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Check verifies the AA, size, parent and item invariants and returns the
// first violation found.
func (t *Tree[T]) Check() error {
	if t.root != nil && t.root.parent != nil {
		return fmt.Errorf("root has a parent")
	}
	_, err := check(t.root)
	return err
}

func check[T any](n *node[T]) (int, error) {
	if n == nil {
		return 0, nil
	}
	if n.item == nil || n.item.n != n {
		return 0, fmt.Errorf("item back-pointer broken at level %d", n.level)
	}
	for _, c := range []*node[T]{n.left, n.right} {
		if c != nil && c.parent != n {
			return 0, fmt.Errorf("parent pointer broken at level %d", n.level)
		}
	}
	if n.left == nil && n.right == nil && n.level != 1 {
		return 0, fmt.Errorf("leaf at level %d", n.level)
	}
	if level(n.left) != n.level-1 {
		return 0, fmt.Errorf("left child level %d under level %d", level(n.left), n.level)
	}
	if rl := level(n.right); rl != n.level && rl != n.level-1 {
		return 0, fmt.Errorf("right child level %d under level %d", rl, n.level)
	}
	if n.right != nil && level(n.right.right) >= n.level {
		return 0, fmt.Errorf("right grandchild level %d under level %d", level(n.right.right), n.level)
	}
	if n.level > 1 && (n.left == nil || n.right == nil) {
		return 0, fmt.Errorf("level %d node missing a child", n.level)
	}
	ls, err := check(n.left)
	if err != nil {
		return 0, err
	}
	rs, err := check(n.right)
	if err != nil {
		return 0, err
	}
	if n.size != ls+rs+1 {
		return 0, fmt.Errorf("size %d, want %d", n.size, ls+rs+1)
	}
	return n.size, nil
}

func size[T any](n *node[T]) int {
	if n == nil {
		return 0
	}
	return n.size
}

func level[T any](n *node[T]) int {
	if n == nil {
		return 0
	}
	return n.level
}

func update[T any](n *node[T]) {
	n.size = size(n.left) + size(n.right) + 1
}

func setLeft[T any](n, c *node[T]) {
	n.left = c
	if c != nil {
		c.parent = n
	}
}

func setRight[T any](n, c *node[T]) {
	n.right = c
	if c != nil {
		c.parent = n
	}
}

// skew removes a left horizontal link with a right rotation.
func skew[T any](n *node[T]) *node[T] {
	if n == nil || n.left == nil || n.left.level != n.level {
		return n
	}
	l := n.left
	setLeft(n, l.right)
	setRight(l, n)
	update(n)
	update(l)
	return l
}

// split removes two consecutive right horizontal links with a left
// rotation, raising the middle node.
func split[T any](n *node[T]) *node[T] {
	if n == nil || n.right == nil || n.right.right == nil || n.right.right.level != n.level {
		return n
	}
	r := n.right
	setRight(n, r.left)
	setLeft(r, n)
	r.level++
	update(n)
	update(r)
	return r
}

func insert[T any](n *node[T], i int, it *Item[T]) *node[T] {
	if n == nil {
		nn := &node[T]{level: 1, size: 1, item: it}
		it.n = nn
		return nn
	}
	if ls := size(n.left); i <= ls {
		setLeft(n, insert(n.left, i, it))
	} else {
		setRight(n, insert(n.right, i-ls-1, it))
	}
	update(n)
	return split(skew(n))
}

// swapItems exchanges the items of two nodes, keeping back-pointers valid.
func swapItems[T any](a, b *node[T]) {
	a.item, b.item = b.item, a.item
	a.item.n = a
	b.item.n = b
}

func remove[T any](n *node[T], i int, removed **Item[T]) *node[T] {
	ls := size(n.left)
	switch {
	case i < ls:
		setLeft(n, remove(n.left, i, removed))
	case i > ls:
		setRight(n, remove(n.right, i-ls-1, removed))
	default:
		if n.left == nil && n.right == nil {
			*removed = n.item
			return nil
		}
		if n.left == nil {
			succ := n.right
			for succ.left != nil {
				succ = succ.left
			}
			swapItems(n, succ)
			setRight(n, remove(n.right, 0, removed))
		} else {
			pred := n.left
			for pred.right != nil {
				pred = pred.right
			}
			swapItems(n, pred)
			setLeft(n, remove(n.left, ls-1, removed))
		}
	}
	update(n)
	return rebalance(n)
}

func rebalance[T any](n *node[T]) *node[T] {
	decreaseLevel(n)
	n = skew(n)
	if n.right != nil {
		setRight(n, skew(n.right))
		if n.right.right != nil {
			setRight(n.right, skew(n.right.right))
		}
	}
	n = split(n)
	if n.right != nil {
		setRight(n, split(n.right))
	}
	return n
}

func decreaseLevel[T any](n *node[T]) {
	should := min(level(n.left), level(n.right)) + 1
	if should >= n.level {
		return
	}
	n.level = should
	if n.right != nil && should < n.right.level {
		n.right.level = should
	}
}

func rangeError(op string, i, n int) error {
	return errors.New(errors.CodeOutOfRangeMutation).
		WithDetail(fmt.Sprintf("%s(%d) outside [0, %d)", op, i, n))
}
