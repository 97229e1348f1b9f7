// Package delta is the plumbing behind incremental helpers such as lookup
// and array deltas.
//
// Every consumer (a derived computation) owns one Context for its whole
// life. While the consumer runs, its Context is the innermost one on the
// Broker's stack. A producer helper asks the current Context for the
// State it keeps for some identity (a container), creating it on first
// access, and pushes subsequent changes into every watching State via
// Broker.Each.
//
// States follow the consumer's run cycle:
//
//	ctx.Begin()         // StartRun on every retained state
//	...                 // helpers call ctx.State(identity, factory)
//	ctx.End()           // drop states not accessed, FinishRun the rest
//
// Nested runs of different consumers keep independent states.
package delta
