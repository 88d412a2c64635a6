package handle

import (
	"reflect"
	"strconv"
)

// Handle is an opaque reference to a registry entry.
// The zero Handle is reserved and always invalid.
type Handle struct {
	id uint64
}

// FromRaw converts an integer presented by the client back into a Handle.
// The result is untrusted: every use is validated by the registry.
func FromRaw(raw int64) Handle {
	return Handle{id: uint64(raw)}
}

// Raw returns the value that crosses the FFI boundary.
func (h Handle) Raw() int64 {
	return int64(h.id)
}

// IsZero reports whether h is the reserved invalid handle.
func (h Handle) IsZero() bool {
	return h.id == 0
}

func (h Handle) String() string {
	return "handle#" + strconv.FormatInt(h.Raw(), 10)
}

// TypeTag identifies the concrete Go type an entry was minted for.
type TypeTag struct {
	t reflect.Type
}

// TagOf returns the tag for T.
func TagOf[T any]() TypeTag {
	return TypeTag{t: reflect.TypeOf((*T)(nil)).Elem()}
}

func (t TypeTag) String() string {
	if t.t == nil {
		return "<nil>"
	}
	return t.t.String()
}

// Event types for handle lifecycle notifications.
type EventType uint8

const (
	EventMinted EventType = iota
	EventLent
	EventDropped
	EventRevoked
)

func (e EventType) String() string {
	switch e {
	case EventMinted:
		return "minted"
	case EventLent:
		return "lent"
	case EventDropped:
		return "dropped"
	case EventRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Tag    TypeTag
	Handle Handle
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}

// Dropper is optionally implemented by native objects that need cleanup.
// Objects implementing io.Closer are closed instead when they are not Droppers.
type Dropper interface {
	Drop()
}

// ShutdownPolicy decides what Close does with entries the client never dropped.
type ShutdownPolicy uint8

const (
	// ShutdownSweep destroys remaining owned objects, newest first.
	ShutdownSweep ShutdownPolicy = iota
	// ShutdownLeak forgets remaining objects without destroying them.
	ShutdownLeak
)

func (p ShutdownPolicy) String() string {
	if p == ShutdownLeak {
		return "leak"
	}
	return "sweep"
}

// Stats is a point-in-time view of registry counters.
// Minted counts owned and lent handles, so
// Minted == Dropped + Revoked + Leaked + Live.
type Stats struct {
	Live    int
	Lent    int
	Minted  uint64
	Dropped uint64
	Revoked uint64
	Leaked  uint64
}
