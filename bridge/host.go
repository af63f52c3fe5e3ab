package bridge

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/clr-bridge/errors"
	"github.com/wippyai/clr-bridge/functable"
	"github.com/wippyai/clr-bridge/interop"
	"github.com/wippyai/clr-bridge/typecache"
)

// Host binds a function table to the load contexts created through it.
//
// Close releases what the host holds in the runtime. A host dropped without
// Close is cleaned up when the garbage collector finds it unreachable: pinned
// internal call storage is released and its contexts are unloaded, but live
// objects are not destroyed.
type Host struct {
	table    *functable.Table
	cache    *typecache.Cache
	state    *hostState
	cleanup  runtime.Cleanup
	cfg      Config
	contexts []*LoadContext
	mu       sync.Mutex
	closed   bool
}

// New creates a host over table. Every required slot must be bound; the
// returned error is an *errors.MissingSlotsError naming the ones that are not.
// A nil cfg means DefaultConfig.
func New(table *functable.Table, cfg *Config) (*Host, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	h := &Host{table: table, cfg: *cfg}
	if cfg.CacheScope == CacheScopeHost {
		h.cache = typecache.New()
	}
	h.state = newHostState(table, h.cache)
	h.cleanup = runtime.AddCleanup(h, (*hostState).abandon, h.state)

	Logger().Debug("host created",
		zap.Stringer("cache_scope", cfg.CacheScope),
		zap.Stringer("charset", table.Strings),
		zap.Bool("objects", table.SupportsObjects()))
	return h, nil
}

// Table returns the function table the host calls through.
func (h *Host) Table() *functable.Table {
	return h.table
}

// Config returns a copy of the host configuration.
func (h *Host) Config() Config {
	return h.cfg
}

// TypeCache returns the host-wide type cache, or nil when types are cached
// per load context.
func (h *Host) TypeCache() *typecache.Cache {
	return h.cache
}

// CreateLoadContext asks the runtime for a new load context.
func (h *Host) CreateLoadContext(name string) (*LoadContext, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.Closed(errors.PhaseContext, "host")
	}

	buf, err := h.table.Strings.Encode(name)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseContext, errors.KindInvalidInput, err, "encode load context name")
	}
	id := h.table.CreateAssemblyLoadContext(interop.Ptr(buf))
	runtime.KeepAlive(buf)

	c := newLoadContext(h, id, name)
	h.contexts = append(h.contexts, c)
	h.state.addContext(id)

	Logger().Debug("load context created",
		zap.String("name", name),
		zap.Int32("context", int32(id)))
	return c, nil
}

// Contexts returns the live load contexts in creation order.
func (h *Host) Contexts() []*LoadContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*LoadContext, len(h.contexts))
	copy(out, h.contexts)
	return out
}

// SetExceptionCallback installs a native function the runtime calls with the
// text of unhandled managed exceptions. See nativehost.NewExceptionCallback.
func (h *Host) SetExceptionCallback(callback uintptr) error {
	if !h.table.SupportsExceptionCallback() {
		return errors.Unsupported(errors.PhaseHost, "SetExceptionCallback slot is not bound")
	}
	errors.Assert(callback != 0, errors.NilPointer(errors.PhaseHost, []string{"callback"}, "uintptr"))

	h.table.SetExceptionCallback(callback)
	return nil
}

// Close unloads every live load context. The host cannot create contexts
// afterwards. Closing twice is a no-op.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	contexts := h.contexts
	h.contexts = nil
	h.mu.Unlock()

	for _, c := range contexts {
		c.unload()
	}
	if h.cache != nil {
		h.cache.Clear()
	}
	h.cleanup.Stop()

	Logger().Debug("host closed", zap.Int("contexts", len(contexts)))
	return nil
}

func (h *Host) forget(c *LoadContext) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, live := range h.contexts {
		if live == c {
			h.contexts = append(h.contexts[:i], h.contexts[i+1:]...)
			return
		}
	}
}
