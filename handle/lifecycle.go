package handle

import (
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/ejb-bridge/errors"
)

// ToHandle moves obj into the registry and returns its handle.
func ToHandle[T any](r *Registry, obj T) Handle {
	return r.Register(TagOf[T](), obj)
}

// Lend registers obj without transferring ownership. The client can cast the
// handle but not drop it; the caller retires it with Registry.Revoke.
func Lend[T any](r *Registry, obj T) Handle {
	return r.RegisterLent(TagOf[T](), obj)
}

// CastHandle validates h and returns the object it names as a T.
func CastHandle[T any](r *Registry, h Handle) (T, error) {
	var zero T
	v, err := r.Lookup(h, TagOf[T]())
	if err != nil {
		return zero, err
	}
	obj, ok := v.(T)
	if !ok {
		r.fatal(errors.Fatal(errors.PhaseCast, "handle %d tagged %s holds %T", h.Raw(), TagOf[T](), v))
		return zero, errors.InvalidHandle(errors.PhaseCast, h.Raw())
	}
	return obj, nil
}

// DropHandle invalidates h and destroys the object it owns.
// A second drop of the same handle fails.
func DropHandle[T any](r *Registry, h Handle) error {
	tag := TagOf[T]()
	v, err := r.Unregister(h, tag)
	if err != nil {
		return err
	}
	if derr := destroy(v); derr != nil {
		r.logger.Warn("destructor failed",
			zap.Int64("handle", h.Raw()),
			zap.Stringer("type", tag),
			zap.Error(derr))
		return errors.Destroy(h.Raw(), tag.String(), derr)
	}
	return nil
}

func destroy(v any) error {
	switch d := v.(type) {
	case Dropper:
		d.Drop()
	case io.Closer:
		return d.Close()
	}
	return nil
}
