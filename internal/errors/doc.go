// Package errors provides the structured error taxonomy of the eyes runtime.
//
// Every error carries a registered code that maps to a category, a short
// message and a documentation URL:
//
//	E001  InvalidWrapTarget        a non-container was passed to Wrap
//	E002  OutOfRangeMutation       an array mutation index is out of bounds
//	E003  InconsistentDeltaUsage   a delta helper invariant was broken
//	E004  DisposedNodeReentry      a disposed derived node was run
//	E005  ObserverCallbackFailure  an access observer panicked
//	E006  CascadeBudgetExceeded    a drain ran too many derived nodes
//	E007  InvalidKey               a key does not fit the container kind
//	E008  NotCallable              Call named a value that is not a method
//
// Errors built from the same code match through errors.Is, so public
// packages export sentinels created with New:
//
//	var ErrOutOfRangeMutation = errors.New(errors.CodeOutOfRangeMutation)
//
//	if stderrors.Is(err, arraydelta.ErrOutOfRangeMutation) { ... }
//
// # Usage
//
//	err := errors.New(errors.CodeInvalidWrapTarget).
//	    WithDetailf("cannot wrap %T", v).
//	    WithSuggestion("wrap a map[string]any, *[]any or map[any]any")
//
//	fmt.Println(err.Format())
package errors
