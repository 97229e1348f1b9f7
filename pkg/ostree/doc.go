// Package ostree implements an order-statistics AA tree: a positional
// list with O(log n) insert, delete, access by position and position of
// an element.
//
//	t := ostree.New[string]()
//	a := t.InsertAt(0, "a")
//	t.InsertAt(0, "b")
//	t.Position(a) // 1
//
// The array delta engine uses it as an alternative implementation of its
// mutation accumulator.
package ostree
