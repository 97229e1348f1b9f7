// Package eye wraps plain Go containers in observable views.
//
// A Store hands out one wrapper per raw container and discipline. Every
// read and write through a wrapper is reported to the store's ledger as
// a path, which is how derived computations learn their dependencies:
//
//	s := eye.NewStore()
//	todos := s.MustWrap(&[]any{}, eye.Pure, "todos").(*eye.Seq)
//	todos.Push(map[string]any{"title": "write docs", "done": false})
//	first := todos.Get(0).(*eye.Record) // reads todos.0 and todos.@length
//	first.Set("done", true)             // writes todos.0.done
//
// Three container kinds are supported, each with its own methods:
// Record (map[string]any), Seq (*[]any) and Dict (map[any]any). Decoded
// JSON or YAML becomes wrappable through Normalize.
//
// LookupDelta and ArrayDelta let a derived computation consume only what
// changed in a container since its previous run.
package eye
