package bridge

import (
	"sync"

	"github.com/wippyai/clr-bridge/bridge/internal/handles"
	"github.com/wippyai/clr-bridge/errors"
	"github.com/wippyai/clr-bridge/functable"
	"github.com/wippyai/clr-bridge/interop"
	"github.com/wippyai/clr-bridge/typecache"
)

// Object is a managed instance created through a LoadContext.
type Object struct {
	ctx       *LoadContext
	typ       *typecache.Type
	handle    functable.ObjectHandle
	slot      handles.Handle
	mu        sync.Mutex
	weak      bool
	destroyed bool
}

// Type returns the instantiated type.
func (o *Object) Type() *typecache.Type {
	return o.typ
}

// Handle returns the runtime's handle for the instance.
func (o *Object) Handle() functable.ObjectHandle {
	return o.handle
}

// Weak reports whether the runtime holds the instance weakly.
func (o *Object) Weak() bool {
	return o.weak
}

// Invoke calls the instance method with args.
func (o *Object) Invoke(method string, args ...any) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.destroyed {
		return errors.Closed(errors.PhaseObject, "object "+o.typ.Name())
	}

	params, err := interop.MarshalParams(errors.PhaseObject, args)
	if err != nil {
		return err
	}
	defer params.Release()

	name, err := params.String(o.ctx.table.Strings, method)
	if err != nil {
		return errors.New(errors.PhaseObject, errors.KindInvalidInput).
			Path("method", method).
			ManagedType(o.typ.Name()).
			Cause(err).
			Detail("encode method name").
			Build()
	}

	o.ctx.table.InvokeMethod(o.handle, name, params.Types(), params.Values(), params.Len())
	return nil
}

// Destroy releases the managed instance. Destroying twice is a no-op.
func (o *Object) Destroy() error {
	if o.destroy() {
		o.ctx.objects.Remove(o.slot)
	}
	return nil
}

func (o *Object) destroy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return false
	}
	o.destroyed = true
	o.ctx.table.DestroyObject(o.handle)
	return true
}
