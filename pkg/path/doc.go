// Package path assigns every reachable location of the observable store a
// comparable, hashable identity.
//
// A Path's hash is built by concatenating one framed, escaped segment per
// key. The framing guarantees, for any path P and any descendant D:
//
//	P.Hash() < D.Hash() < HashAfterLastDescendant(P)
//
// so "P and everything under P" is the half-open range
// [P.Hash(), HashAfterLastDescendant(P)) of a sorted hash list.
//
// Paths are interned by a Registry and never mutated:
//
//	reg := path.NewRegistry()
//	todos := reg.Child(reg.Root(), "todos")
//	first := reg.Child(todos, 0)
//	reg.Child(todos, 0) == first // true
//
// Paths referencing short-lived symbolic keys stay interned for the life
// of the Registry; drop the Registry to release them.
package path
