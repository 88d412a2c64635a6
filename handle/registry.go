package handle

import (
	"math"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/ejb-bridge/errors"
)

type entry struct {
	value any
	tag   TypeTag
	lent  bool
}

// Registry maps live handles to the objects they own.
// All operations are safe for concurrent use.
type Registry struct {
	entries   map[uint64]entry
	logger    *zap.Logger
	fatal     func(error)
	observers []Observer
	last      uint64
	limit     uint64
	dropped   uint64
	revoked   uint64
	leaked    uint64
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	policy    ShutdownPolicy
	closed    bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithShutdownPolicy sets what Close does with entries that were never dropped.
func WithShutdownPolicy(p ShutdownPolicy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

// WithFatalHandler replaces the handler for registry invariant violations.
// The default logs at fatal level, which terminates the process. A handler
// that returns lets Register return the zero Handle.
func WithFatalHandler(fn func(error)) Option {
	return func(r *Registry) {
		if fn != nil {
			r.fatal = fn
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[uint64]entry),
		logger:  Logger(),
		limit:   math.MaxInt64,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fatal == nil {
		r.fatal = func(err error) {
			r.logger.Fatal("handle registry invariant violated", zap.Error(err))
		}
	}
	return r
}

// Register takes ownership of value and returns a fresh handle for it.
func (r *Registry) Register(tag TypeTag, value any) Handle {
	return r.insert(tag, value, false)
}

// RegisterLent registers a value the caller keeps owning.
// The handle can be looked up but only Revoke retires it.
func (r *Registry) RegisterLent(tag TypeTag, value any) Handle {
	return r.insert(tag, value, true)
}

func (r *Registry) insert(tag TypeTag, value any, lent bool) Handle {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.fatal(errors.Fatal(errors.PhaseMint, "register %s after registry shutdown", tag))
		return Handle{}
	}
	if r.last >= r.limit {
		r.mu.Unlock()
		r.fatal(errors.Fatal(errors.PhaseMint, "handle space exhausted after %d handles", r.last))
		return Handle{}
	}

	id := r.last + 1
	if _, dup := r.entries[id]; dup {
		r.mu.Unlock()
		r.fatal(errors.Fatal(errors.PhaseMint, "handle %d issued twice", id))
		return Handle{}
	}
	r.last = id
	r.entries[id] = entry{value: value, tag: tag, lent: lent}
	r.mu.Unlock()

	h := Handle{id: id}
	typ := EventMinted
	if lent {
		typ = EventLent
	}
	r.logger.Debug("handle issued",
		zap.Int64("handle", h.Raw()),
		zap.Stringer("type", tag),
		zap.Bool("lent", lent))
	r.notify(Event{Type: typ, Handle: h, Tag: tag, Value: value})
	return h
}

// Lookup returns the value for h if it is live and was registered under tag.
func (r *Registry) Lookup(h Handle, tag TypeTag) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[h.id]
	r.mu.RUnlock()

	if err := r.check(errors.PhaseCast, h, tag, e, ok); err != nil {
		return nil, err
	}
	return e.value, nil
}

// Unregister removes an owned entry and returns its value without destroying it.
// Lent entries and entries of another type are left in place.
func (r *Registry) Unregister(h Handle, tag TypeTag) (any, error) {
	r.mu.Lock()
	e, ok := r.entries[h.id]
	if err := r.check(errors.PhaseDrop, h, tag, e, ok); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if e.lent {
		r.mu.Unlock()
		r.logger.Debug("drop of lent handle rejected", zap.Int64("handle", h.Raw()))
		return nil, errors.InvalidHandle(errors.PhaseDrop, h.Raw())
	}
	delete(r.entries, h.id)
	r.dropped++
	r.mu.Unlock()

	r.notify(Event{Type: EventDropped, Handle: h, Tag: tag, Value: e.value})
	return e.value, nil
}

// Revoke retires a lent handle. The value is not destroyed.
func (r *Registry) Revoke(h Handle) error {
	r.mu.Lock()
	e, ok := r.entries[h.id]
	if !ok || !e.lent {
		r.mu.Unlock()
		return errors.InvalidHandle(errors.PhaseDrop, h.Raw())
	}
	delete(r.entries, h.id)
	r.revoked++
	r.mu.Unlock()

	r.notify(Event{Type: EventRevoked, Handle: h, Tag: e.tag, Value: e.value})
	return nil
}

// check validates an entry read under the lock. The reason is logged but the
// returned error is the same for every failure.
func (r *Registry) check(phase errors.Phase, h Handle, tag TypeTag, e entry, ok bool) error {
	if !ok {
		r.logger.Debug("unknown handle",
			zap.String("phase", string(phase)),
			zap.Int64("handle", h.Raw()))
		return errors.InvalidHandle(phase, h.Raw())
	}
	if e.tag != tag {
		r.logger.Debug("handle type mismatch",
			zap.String("phase", string(phase)),
			zap.Int64("handle", h.Raw()),
			zap.Stringer("want", tag),
			zap.Stringer("have", e.tag))
		return errors.InvalidHandle(phase, h.Raw())
	}
	return nil
}

// Len returns the number of live handles, lent ones included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Stats returns the registry counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Live:    len(r.entries),
		Minted:  r.last,
		Dropped: r.dropped,
		Revoked: r.revoked,
		Leaked:  r.leaked,
	}
	for _, e := range r.entries {
		if e.lent {
			s.Lent++
		}
	}
	return s
}

// Each calls fn for every live handle in ascending order until fn returns false.
// fn runs on a snapshot taken under the lock and may call back into the registry.
func (r *Registry) Each(fn func(Handle, TypeTag, any) bool) {
	r.mu.RLock()
	ids := r.sortedIDsLocked()
	snap := make([]entry, len(ids))
	for i, id := range ids {
		snap[i] = r.entries[id]
	}
	r.mu.RUnlock()

	for i, id := range ids {
		if !fn(Handle{id: id}, snap[i].tag, snap[i].value) {
			return
		}
	}
}

func (r *Registry) sortedIDsLocked() []uint64 {
	ids := make([]uint64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Subscribe adds an observer for lifecycle events.
func (r *Registry) Subscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// Unsubscribe removes an observer.
func (r *Registry) Unsubscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, obs := range r.observers {
		if obs == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

func (r *Registry) notify(e Event) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, o := range r.observers {
		o.OnHandleEvent(e)
	}
}

// Close retires every remaining handle according to the shutdown policy.
// Close is idempotent; registering after Close is a fatal error.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	ids := r.sortedIDsLocked()
	remaining := make([]entry, len(ids))
	owned := 0
	for i, id := range ids {
		remaining[i] = r.entries[id]
		if !remaining[i].lent {
			owned++
		}
	}
	r.entries = make(map[uint64]entry)
	r.revoked += uint64(len(ids) - owned)
	if r.policy == ShutdownLeak {
		r.leaked += uint64(owned)
	} else {
		r.dropped += uint64(owned)
	}
	r.mu.Unlock()

	if r.policy == ShutdownLeak {
		if owned > 0 {
			r.logger.Warn("leaving undropped handles to process exit", zap.Int("count", owned))
		}
		return nil
	}

	var err error
	for i := len(ids) - 1; i >= 0; i-- {
		h, e := Handle{id: ids[i]}, remaining[i]
		if e.lent {
			r.notify(Event{Type: EventRevoked, Handle: h, Tag: e.tag, Value: e.value})
			continue
		}
		if derr := destroy(e.value); derr != nil {
			werr := errors.Destroy(h.Raw(), e.tag.String(), derr)
			werr.Phase = errors.PhaseShutdown
			err = multierr.Append(err, werr)
		}
		r.notify(Event{Type: EventDropped, Handle: h, Tag: e.tag, Value: e.value})
	}
	if owned > 0 {
		r.logger.Info("swept undropped handles",
			zap.Int("count", owned),
			zap.Int("failed", len(multierr.Errors(err))))
	}
	return err
}
