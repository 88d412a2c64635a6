// Package handle issues and tracks opaque handles for native objects that are
// exposed to a foreign, garbage-collected client.
//
// The client never sees a pointer. It holds a 64-bit integer that names an
// entry in a Registry, presents the integer back on every call, and releases
// it with an explicit free. The registry validates every presented integer,
// so a forged, stale or wrongly typed handle is reported as an error instead
// of becoming a memory-safety violation.
//
// # Lifecycle
//
//	reg := handle.NewRegistry(handle.WithLogger(log))
//	defer reg.Close()
//
//	// Mint: ownership of db moves into the registry
//	h := handle.ToHandle(reg, db)
//	raw := h.Raw() // crosses the boundary as a Java long
//
//	// Cast: on every reentry, before the object is touched
//	db, err := handle.CastHandle[*storage.MemoryDB](reg, handle.FromRaw(raw))
//
//	// Drop: exactly once; the object's Drop or Close runs
//	err = handle.DropHandle[*storage.MemoryDB](reg, handle.FromRaw(raw))
//
// # Type Safety
//
// Each entry is tagged with the static Go type it was minted for. A cast or
// drop under a different type fails. Unknown handles, dropped handles and
// type mismatches all produce the same error, matched by
// errors.ErrInvalidHandle, so a caller cannot probe the registry's contents.
//
// # Owned and Lent Handles
//
// ToHandle transfers ownership: the registry destroys the object on drop.
// Lend registers an object the bridge keeps owning; the client may cast it
// but cannot drop it, and the bridge retires it with Revoke, which does not
// run the destructor.
//
// # Handle Values
//
// Handle values come from a monotonic counter and are never reused within a
// registry's lifetime. Zero is never issued.
//
// # Shutdown
//
// Close applies the ShutdownPolicy chosen by the embedder: ShutdownSweep
// destroys every remaining owned object, newest first; ShutdownLeak forgets
// them and leaves cleanup to process exit.
package handle
