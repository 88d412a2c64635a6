// Package errors provides structured error types for the native bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the raw handle involved, the native type name, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEntry, errors.KindOutOfBounds).
//		Detail("list %q has %d items", name, n).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidHandle(errors.PhaseCast, raw)
//	err := errors.ForbiddenParameter("Djava.class.path=x")
//
// Every invalid handle error matches ErrInvalidHandle through errors.Is,
// whatever phase produced it.
package errors
