package bridge

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/clr-bridge/bridge/internal/handles"
	"github.com/wippyai/clr-bridge/errors"
	"github.com/wippyai/clr-bridge/functable"
	"github.com/wippyai/clr-bridge/interop"
	"github.com/wippyai/clr-bridge/typecache"
)

// LoadContext is an isolation boundary holding the assemblies loaded into
// it. Assemblies are held by pointer, so references returned by LoadAssembly
// stay valid as the context grows.
type LoadContext struct {
	host       *Host
	table      *functable.Table
	cache      *typecache.Cache
	objects    *handles.Table[*Object]
	interned   map[functable.TypeID]struct{}
	name       string
	assemblies []*Assembly
	id         functable.ContextID
	mu         sync.Mutex
	unloaded   bool
}

func newLoadContext(h *Host, id functable.ContextID, name string) *LoadContext {
	cache := h.cache
	if h.cfg.CacheScope == CacheScopeContext {
		cache = typecache.New()
	}
	objects := handles.New[*Object]()
	objects.Observe(func(e handles.Event) {
		Logger().Debug("object handle",
			zap.Int32("context", int32(id)),
			zap.Uint32("handle", uint32(e.Handle)),
			zap.Bool("live", e.Type == handles.EventInserted))
	})
	return &LoadContext{
		host:    h,
		table:   h.table,
		cache:    cache,
		objects:  objects,
		interned: make(map[functable.TypeID]struct{}),
		name:     name,
		id:       id,
	}
}

// ID returns the runtime-issued context id.
func (c *LoadContext) ID() functable.ContextID {
	return c.id
}

// Name returns the name the context was created with.
func (c *LoadContext) Name() string {
	return c.name
}

// TypeCache returns the cache this context interns types into.
func (c *LoadContext) TypeCache() *typecache.Cache {
	return c.cache
}

// Unloaded reports whether Unload has run.
func (c *LoadContext) Unloaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unloaded
}

// LoadAssembly loads the assembly at path and appends it to the context.
// The result is never nil; check Assembly.LoadStatus for the outcome. A
// path that cannot be encoded for the runtime yields LoadInvalidFilePath
// without calling it.
func (c *LoadContext) LoadAssembly(path string) *Assembly {
	c.mu.Lock()
	defer c.mu.Unlock()

	errors.Assert(!c.unloaded, errors.Closed(errors.PhaseLoad, "load context "+c.name))

	asm := &Assembly{
		ctx:   c,
		calls: interop.NewCallRegistry(c.table.Strings),
		path:  path,
	}
	c.assemblies = append(c.assemblies, asm)
	c.host.state.pin(c.id, asm.calls)

	buf, err := c.table.Strings.Encode(path)
	if err != nil {
		asm.status = functable.LoadInvalidFilePath
		Logger().Warn("assembly path rejected",
			zap.String("path", path),
			zap.Error(err))
		return asm
	}

	asm.id = c.table.LoadManagedAssembly(c.id, interop.Ptr(buf))
	runtime.KeepAlive(buf)
	asm.status = c.table.GetLastLoadStatus()

	if asm.status != functable.LoadSuccess {
		Logger().Warn("assembly load failed",
			zap.String("path", path),
			zap.Int32("context", int32(c.id)),
			zap.Stringer("status", asm.status))
		return asm
	}

	asm.name = c.table.String(c.table.GetAssemblyName(asm.id))
	asm.types = c.enumerateTypes(asm.id)

	Logger().Debug("assembly loaded",
		zap.String("path", path),
		zap.String("name", asm.name),
		zap.Int32("id", int32(asm.id)),
		zap.Int("types", len(asm.types)))
	return asm
}

// enumerateTypes asks for the type count, fills a buffer of that size, and
// interns every id. Names are fetched only for ids not cached yet.
func (c *LoadContext) enumerateTypes(id functable.AssemblyID) []*typecache.Type {
	var count int32
	c.table.GetAssemblyTypes(id, nil, &count)
	if count <= 0 {
		return nil
	}

	ids := make([]functable.TypeID, count)
	c.table.GetAssemblyTypes(id, &ids[0], &count)
	if count < 0 {
		count = 0
	}
	ids = ids[:min(int(count), len(ids))]

	types := make([]*typecache.Type, 0, len(ids))
	for _, tid := range ids {
		if tid == 0 {
			Logger().Debug("skipping null type id", zap.Int32("assembly", int32(id)))
			continue
		}
		types = append(types, c.intern(tid))
	}
	return types
}

// intern resolves tid through the context's cache. In a host-scoped cache the
// context also takes a reference, dropped again on unload.
func (c *LoadContext) intern(tid functable.TypeID) *typecache.Type {
	if c.host.cfg.CacheScope == CacheScopeHost {
		return c.host.state.intern(c.interned, tid)
	}
	return internType(c.table, c.cache, tid)
}

// Assemblies returns every assembly loaded into the context, failed loads
// included, in load order.
func (c *LoadContext) Assemblies() []*Assembly {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Assembly, len(c.assemblies))
	copy(out, c.assemblies)
	return out
}

// FindAssembly returns the first successfully loaded assembly with this
// name, or nil.
func (c *LoadContext) FindAssembly(name string) *Assembly {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.assemblies {
		if a.status == functable.LoadSuccess && a.name == name {
			return a
		}
	}
	return nil
}

// GetType looks a type up by qualified name in the context's cache.
func (c *LoadContext) GetType(name string) *typecache.Type {
	return c.cache.Lookup(name)
}

// CreateObject instantiates t with constructor arguments args.
func (c *LoadContext) CreateObject(t *typecache.Type, args ...any) (*Object, error) {
	return c.createObject(t, false, args)
}

// CreateWeakObject is CreateObject with the runtime holding only a weak
// reference to the instance.
func (c *LoadContext) CreateWeakObject(t *typecache.Type, args ...any) (*Object, error) {
	return c.createObject(t, true, args)
}

func (c *LoadContext) createObject(t *typecache.Type, weak bool, args []any) (*Object, error) {
	if !c.table.SupportsObjects() {
		return nil, errors.Unsupported(errors.PhaseObject, "object slots are not bound")
	}
	if t.IsNull() {
		return nil, errors.InvalidInput(errors.PhaseObject, "cannot instantiate the null type")
	}
	if c.Unloaded() {
		return nil, errors.Closed(errors.PhaseObject, "load context "+c.name)
	}

	params, err := interop.MarshalParams(errors.PhaseObject, args)
	if err != nil {
		return nil, err
	}
	defer params.Release()

	typeName, err := params.String(c.table.Strings, t.Name())
	if err != nil {
		return nil, errors.Instantiation(t.Name(), err)
	}

	info := &functable.ObjectCreateInfo{
		TypeName:       typeName,
		Parameters:     params.Values(),
		ParameterTypes: params.Types(),
		Length:         params.Len(),
	}
	if weak {
		info.IsWeakRef = 1
	}

	var pinner runtime.Pinner
	pinner.Pin(info)
	handle := c.table.CreateObject(info)
	pinner.Unpin()

	if handle == 0 {
		return nil, errors.Instantiation(t.Name(), nil)
	}

	obj := &Object{ctx: c, typ: t, handle: handle, weak: weak}
	slot, err := c.objects.Insert(obj)
	if err != nil {
		// Unloaded while the runtime was constructing the instance.
		c.table.DestroyObject(handle)
		return nil, errors.Closed(errors.PhaseObject, "load context "+c.name)
	}
	obj.slot = slot
	return obj, nil
}

// Objects returns the number of live objects created in this context.
func (c *LoadContext) Objects() int {
	return c.objects.Len()
}

// Unload destroys every live object, releases the internal call storage of
// every assembly, evicts the types only this context referenced and asks the
// runtime to unload the context. Loading into
// the context afterwards panics. Unloading twice is a no-op.
func (c *LoadContext) Unload() {
	if c.unload() {
		c.host.forget(c)
	}
}

func (c *LoadContext) unload() bool {
	c.mu.Lock()
	if c.unloaded {
		c.mu.Unlock()
		return false
	}
	c.unloaded = true
	assemblies := c.assemblies
	c.mu.Unlock()

	c.objects.Close(func(_ handles.Handle, o *Object) {
		o.destroy()
	})
	for _, a := range assemblies {
		a.release()
	}
	evicted := 0
	if c.host.cfg.CacheScope == CacheScopeContext {
		evicted = c.cache.Len()
		c.cache.Clear()
	} else {
		evicted = c.host.state.evict(c.interned)
	}
	c.host.state.removeContext(c.id)
	c.table.UnloadAssemblyLoadContext(c.id)

	Logger().Debug("load context unloaded",
		zap.String("name", c.name),
		zap.Int32("context", int32(c.id)),
		zap.Int("assemblies", len(assemblies)),
		zap.Int("types_evicted", evicted))
	return true
}
