// Package bridge implements the native entry points a client VM calls.
//
// Every entry point receives raw int64 handles exactly as the client passed
// them and casts them through the runtime's registry before touching the
// object. Errors are returned as values; Status translates them into the
// integer codes the client boundary understands.
package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/ejb-bridge/config"
	"github.com/wippyai/ejb-bridge/handle"
)

// Runtime owns the handle registry for one embedded VM.
type Runtime struct {
	reg    *handle.Registry
	logger *zap.Logger
}

type options struct {
	logger *zap.Logger
	fatal  func(error)
}

// Option configures a Runtime.
type Option func(*options)

// WithLogger sets the runtime logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFatalHandler overrides how registry invariant violations are handled.
func WithFatalHandler(fn func(error)) Option {
	return func(o *options) { o.fatal = fn }
}

// New creates a runtime with a fresh registry configured from cfg.
func New(cfg config.HandleConfig, opts ...Option) (*Runtime, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	o := options{logger: Logger()}
	for _, opt := range opts {
		opt(&o)
	}

	reg := handle.NewRegistry(
		handle.WithLogger(o.logger.Named("handles")),
		handle.WithShutdownPolicy(policy),
		handle.WithFatalHandler(o.fatal),
	)
	o.logger.Debug("bridge runtime started", zap.Stringer("shutdown_policy", policy))
	return &Runtime{reg: reg, logger: o.logger}, nil
}

// Registry returns the runtime's handle registry.
func (rt *Runtime) Registry() *handle.Registry {
	return rt.reg
}

// Close tears down the registry using the configured shutdown policy.
func (rt *Runtime) Close() error {
	live := rt.reg.Len()
	err := rt.reg.Close()
	s := rt.reg.Stats()
	rt.logger.Debug("bridge runtime stopped",
		zap.Int("live_at_close", live),
		zap.Uint64("minted", s.Minted),
		zap.Uint64("dropped", s.Dropped),
		zap.Uint64("revoked", s.Revoked),
		zap.Uint64("leaked", s.Leaked),
		zap.Error(err))
	return err
}

// Lend exposes a bridge-owned object to the client for the duration of fn.
// The client can use the handle but not free it; it is revoked when fn
// returns and the object is left intact.
func Lend[T any](rt *Runtime, obj T, fn func(raw int64) error) error {
	h := handle.Lend(rt.reg, obj)
	defer func() {
		if err := rt.reg.Revoke(h); err != nil {
			rt.logger.Warn("lent handle already retired", zap.Int64("handle", h.Raw()), zap.Error(err))
		}
	}()
	return fn(h.Raw())
}

func (rt *Runtime) fail(op string, raw int64, err error) error {
	rt.logger.Debug("entry point failed",
		zap.String("op", op),
		zap.Int64("handle", raw),
		zap.Error(err))
	return err
}
