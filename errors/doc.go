// Package errors provides structured error types for the CLR bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: field path, Go/managed type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseObject, errors.KindTypeMismatch).
//		Path("CreateObject", "arg1").
//		GoType("complex128").
//		Detail("no managed parameter type").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseObject, path, "string", "Int")
//	err := errors.Unsupported(errors.PhaseObject, "CreateObject slot not bound")
//
// Programming errors at the runtime boundary (nil function pointers, use of an
// unbound function table, loading into an unloaded context) are not returned.
// They are raised with Assert, which panics with an *Error, because continuing
// would corrupt tables the runtime host reads later.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
