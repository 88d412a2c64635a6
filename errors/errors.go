package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseMint     Phase = "mint"     // handle issuance
	PhaseCast     Phase = "cast"     // handle validation on reentry
	PhaseDrop     Phase = "drop"     // handle destruction
	PhaseShutdown Phase = "shutdown" // registry teardown
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseEntry    Phase = "entry"    // native entry point
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidHandle      Kind = "invalid_handle"
	KindFatal              Kind = "fatal"
	KindDestroy            Kind = "destroy"
	KindForbiddenParameter Kind = "forbidden_parameter"
	KindInvalidConfig      Kind = "invalid_config"
	KindClosed             Kind = "closed"
	KindReadOnly           Kind = "read_only"
	KindOutOfBounds        Kind = "out_of_bounds"
)

// ErrInvalidHandle matches every invalid handle error regardless of phase.
var ErrInvalidHandle error = &Error{Kind: KindInvalidHandle}

// Error is the structured error type used throughout the bridge
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	TypeName string
	Detail   string
	Handle   int64
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Handle != 0 {
		fmt.Fprintf(&b, " handle %d", e.Handle)
	}

	if e.TypeName != "" {
		b.WriteString(": type ")
		b.WriteString(e.TypeName)
	}

	if e.Detail != "" {
		if e.TypeName != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Handle sets the raw handle value involved
func (b *Builder) Handle(raw int64) *Builder {
	b.err.Handle = raw
	return b
}

// TypeName sets the native type name
func (b *Builder) TypeName(t string) *Builder {
	b.err.TypeName = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidHandle creates the single client-visible error for unknown, stale
// and wrongly typed handles. It carries no information about which one.
func InvalidHandle(phase Phase, raw int64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Handle: raw,
	}
}

// Fatal creates a registry invariant violation. It is never returned to a
// caller; it is handed to the registry's fatal hook.
func Fatal(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFatal,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Destroy wraps a destructor failure for the given handle
func Destroy(raw int64, typeName string, cause error) *Error {
	return &Error{
		Phase:    PhaseDrop,
		Kind:     KindDestroy,
		Handle:   raw,
		TypeName: typeName,
		Cause:    cause,
	}
}

// ForbiddenParameter creates an error for a JVM parameter the bridge sets itself
func ForbiddenParameter(param string) *Error {
	return &Error{
		Phase: PhaseConfig,
		Kind:  KindForbiddenParameter,
		Value: param,
		Detail: fmt.Sprintf("Trying to specify JVM parameter [%s] that is set by EJB internally. "+
			"Use EJB parameters instead.", param),
	}
}

// InvalidConfig creates a configuration validation error
func InvalidConfig(field, detail string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidConfig,
		Detail: fmt.Sprintf("%s: %s", field, detail),
	}
}

// Closed creates an error for operations on a released object
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// ReadOnly creates an error for writes through a read-only view
func ReadOnly(what string) *Error {
	return &Error{
		Phase:  PhaseEntry,
		Kind:   KindReadOnly,
		Detail: fmt.Sprintf("%s is read-only", what),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
