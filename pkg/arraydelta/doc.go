// Package arraydelta turns a sequence of array splices into a minimal
// edit script.
//
// Mutations are recorded against the original length as they happen:
//
//	acc := arraydelta.NewAccumulator(len(pre))
//	acc.Record(arraydelta.Mutation{Index: 1, SizeDelta: -2, Removed: []any{b, c}})
//	acc.Record(arraydelta.Mutation{Index: 0, SizeDelta: 1})
//	d := arraydelta.AddMoves(acc.Delta(), removed, inserted)
//
// The result lists removes (pre-mutation indices, descending) and inserts
// (post-mutation indices, ascending). AddMoves pairs removed values with
// inserted values of the same identity so a consumer can move an existing
// element instead of destroying and recreating it. Apply replays a delta
// and is the reference for its semantics.
package arraydelta
