package wasmhost

import (
	"context"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/clr-bridge/errors"
	"github.com/wippyai/clr-bridge/functable"
	"github.com/wippyai/clr-bridge/interop"
)

const (
	exportMemory = "memory"
	exportAlloc  = "clr_alloc"
	exportFree   = "clr_free"

	exportLoad          = "clr_load_managed_assembly"
	exportLastStatus    = "clr_get_last_load_status"
	exportAssemblyName  = "clr_get_assembly_name"
	exportAssemblyTypes = "clr_get_assembly_types"
	exportTypeName      = "clr_get_type_name"
	exportInternalCalls = "clr_set_internal_calls"
	exportCreateContext = "clr_create_assembly_load_context"
	exportUnloadContext = "clr_unload_assembly_load_context"

	recordSize = 16
	typeIDSize = 8
)

// exports are the guest functions the host calls.
type exports struct {
	alloc         api.Function
	free          api.Function
	load          api.Function
	lastStatus    api.Function
	assemblyName  api.Function
	assemblyTypes api.Function
	typeName      api.Function
	internalCalls api.Function
	createContext api.Function
	unloadContext api.Function
}

// Host is an instantiated guest runtime.
type Host struct {
	ctx     context.Context
	runtime wazero.Runtime
	module  api.Module
	mem     api.Memory
	table   *functable.Table
	fns     exports
	mu      sync.Mutex
	trapped bool
	closed  bool
}

// New compiles and instantiates wasm. ctx is kept for every later guest
// call. A guest lacking a required export yields an *errors.MissingSlotsError.
func New(ctx context.Context, wasm []byte, cfg *Config) (*Host, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	mod, err := r.InstantiateWithConfig(ctx, wasm, wazero.NewModuleConfig().WithName(cfg.moduleName()))
	if err != nil {
		r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInstantiation, err, "instantiate guest runtime")
	}

	h := &Host{ctx: ctx, runtime: r, module: mod, mem: mod.Memory()}
	if err := h.resolve(); err != nil {
		r.Close(ctx)
		return nil, err
	}
	h.table = &functable.Table{
		LoadManagedAssembly:       h.loadManagedAssembly,
		GetLastLoadStatus:         h.getLastLoadStatus,
		GetAssemblyName:           h.getAssemblyName,
		GetAssemblyTypes:          h.getAssemblyTypes,
		GetTypeName:               h.getTypeName,
		SetInternalCalls:          h.setInternalCalls,
		CreateAssemblyLoadContext: h.createAssemblyLoadContext,
		UnloadAssemblyLoadContext: h.unloadAssemblyLoadContext,
		Strings:                   interop.CharSetUTF8,
	}

	Logger().Debug("guest runtime instantiated",
		zap.String("module", cfg.moduleName()),
		zap.Uint32("memory_bytes", h.mem.Size()),
		zap.Bool("free", h.fns.free != nil))
	return h, nil
}

func (h *Host) resolve() error {
	var missing []string
	fn := func(name, key string) api.Function {
		f := h.module.ExportedFunction(name)
		if f == nil {
			missing = append(missing, key)
		}
		return f
	}

	if h.mem == nil {
		missing = append(missing, "guest#"+exportMemory)
	}
	h.fns = exports{
		alloc:         fn(exportAlloc, "guest#"+exportAlloc),
		free:          h.module.ExportedFunction(exportFree),
		load:          fn(exportLoad, "assembly#LoadManagedAssembly"),
		lastStatus:    fn(exportLastStatus, "assembly#GetLastLoadStatus"),
		assemblyName:  fn(exportAssemblyName, "assembly#GetAssemblyName"),
		assemblyTypes: fn(exportAssemblyTypes, "assembly#GetAssemblyTypes"),
		typeName:      fn(exportTypeName, "type#GetTypeName"),
		internalCalls: fn(exportInternalCalls, "interop#SetInternalCalls"),
		createContext: fn(exportCreateContext, "context#CreateAssemblyLoadContext"),
		unloadContext: fn(exportUnloadContext, "context#UnloadAssemblyLoadContext"),
	}
	if len(missing) > 0 {
		return errors.NewMissingSlotsError(missing)
	}
	return nil
}

// Table returns the function table backed by the guest.
func (h *Host) Table() *functable.Table {
	return h.table
}

// Module returns the guest instance.
func (h *Host) Module() api.Module {
	return h.module
}

// Close releases the guest and its runtime. Table calls afterwards return
// zero results.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.runtime.Close(ctx)
}

// call invokes a guest export. Failures are logged and reported as false.
func (h *Host) call(name string, fn api.Function, params ...uint64) ([]uint64, bool) {
	if h.closed {
		Logger().Warn("guest call after close", zap.String("export", name))
		return nil, false
	}
	res, err := fn.Call(h.ctx, params...)
	if err != nil {
		Logger().Error("guest trap", zap.String("export", name), zap.Error(err))
		return nil, false
	}
	return res, true
}

func (h *Host) alloc(size uint32) (uint32, bool) {
	res, ok := h.call(exportAlloc, h.fns.alloc, api.EncodeU32(size))
	if !ok {
		return 0, false
	}
	ptr := api.DecodeU32(res[0])
	if ptr == 0 && size > 0 {
		Logger().Error("guest allocation failed", zap.Uint32("size", size))
		return 0, false
	}
	return ptr, true
}

func (h *Host) release(ptr, size uint32) {
	if h.fns.free != nil && ptr != 0 {
		h.call(exportFree, h.fns.free, api.EncodeU32(ptr), api.EncodeU32(size))
	}
}

// arraySize returns header + n*elem, or false when the result does not fit
// the 32-bit guest address space.
func arraySize(header, n, elem uint32) (uint32, bool) {
	size := uint64(header) + uint64(n)*uint64(elem)
	if size > math.MaxUint32 {
		return 0, false
	}
	return uint32(size), true
}

// writeBytes copies b into freshly allocated guest memory.
func (h *Host) writeBytes(b []byte) (uint32, bool) {
	if uint64(len(b)) > math.MaxUint32 {
		return 0, false
	}
	ptr, ok := h.alloc(uint32(len(b)))
	if !ok {
		return 0, false
	}
	if !h.mem.Write(ptr, b) {
		Logger().Error("guest write out of range", zap.Uint32("ptr", ptr), zap.Int("len", len(b)))
		return 0, false
	}
	return ptr, true
}

// readString copies a packed guest string into a NUL-terminated Go buffer.
func (h *Host) readString(packed uint64) *byte {
	ptr, n := uint32(packed>>32), uint32(packed)
	b, ok := h.mem.Read(ptr, n)
	if !ok {
		Logger().Error("guest string out of range", zap.Uint32("ptr", ptr), zap.Uint32("len", n))
		b = nil
	}
	buf := make([]byte, len(b)+1)
	copy(buf, b)
	return &buf[0]
}

func (h *Host) loadManagedAssembly(alc functable.ContextID, path *byte) functable.AssemblyID {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.trapped = false
	b := h.table.Strings.Bytes(path)
	ptr, ok := h.writeBytes(b)
	if !ok {
		h.trapped = true
		return 0
	}
	defer h.release(ptr, uint32(len(b)))

	res, ok := h.call(exportLoad, h.fns.load, api.EncodeI32(int32(alc)), api.EncodeU32(ptr), api.EncodeU32(uint32(len(b))))
	if !ok {
		h.trapped = true
		return 0
	}
	return functable.AssemblyID(api.DecodeI32(res[0]))
}

func (h *Host) getLastLoadStatus() functable.LoadStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.trapped {
		return functable.LoadUnknownError
	}
	res, ok := h.call(exportLastStatus, h.fns.lastStatus)
	if !ok {
		return functable.LoadUnknownError
	}
	return functable.LoadStatus(api.DecodeI32(res[0]))
}

func (h *Host) getAssemblyName(id functable.AssemblyID) *byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	res, ok := h.call(exportAssemblyName, h.fns.assemblyName, api.EncodeI32(int32(id)))
	if !ok {
		return h.readString(0)
	}
	return h.readString(res[0])
}

func (h *Host) getAssemblyTypes(id functable.AssemblyID, out *functable.TypeID, count *int32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	capacity := uint32(0)
	if out != nil && *count > 0 {
		capacity = uint32(*count)
	}
	size, ok := arraySize(4, capacity, typeIDSize)
	if !ok {
		Logger().Error("type id buffer exceeds guest address space",
			zap.Int32("assembly", int32(id)),
			zap.Uint32("count", capacity))
		*count = 0
		return
	}
	scratch, ok := h.alloc(size)
	if !ok {
		*count = 0
		return
	}
	defer h.release(scratch, size)

	countPtr, buf := scratch, uint32(0)
	if out != nil {
		buf = scratch + 4
	}
	h.mem.WriteUint32Le(countPtr, capacity)

	if _, ok := h.call(exportAssemblyTypes, h.fns.assemblyTypes,
		api.EncodeI32(int32(id)), api.EncodeU32(buf), api.EncodeU32(countPtr)); !ok {
		*count = 0
		return
	}

	n, _ := h.mem.ReadUint32Le(countPtr)
	if out == nil {
		*count = int32(min(n, math.MaxInt32))
		return
	}

	n = min(n, capacity)
	dst := unsafe.Slice(out, n)
	for i := range dst {
		v, _ := h.mem.ReadUint64Le(buf + uint32(i)*typeIDSize)
		dst[i] = functable.TypeID(v)
	}
	*count = int32(n)
}

func (h *Host) getTypeName(id functable.TypeID) *byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	res, ok := h.call(exportTypeName, h.fns.typeName, api.EncodeI64(int64(id)))
	if !ok {
		return h.readString(0)
	}
	return h.readString(res[0])
}

// setInternalCalls copies the records and their names into guest memory.
// The guest owns the copies; they are never released.
func (h *Host) setInternalCalls(calls *interop.InternalCall, count int32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if calls == nil || count <= 0 {
		h.call(exportInternalCalls, h.fns.internalCalls, 0, 0)
		return
	}

	size, ok := arraySize(0, uint32(count), recordSize)
	if !ok {
		Logger().Error("internal call table exceeds guest address space", zap.Int32("count", count))
		return
	}
	table, ok := h.alloc(size)
	if !ok {
		return
	}
	records := unsafe.Slice(calls, count)
	for i, rec := range records {
		name := h.table.Strings.Bytes(rec.Name)
		namePtr, ok := h.writeBytes(name)
		if !ok {
			return
		}
		at := table + uint32(i)*recordSize
		h.mem.WriteUint32Le(at, namePtr)
		h.mem.WriteUint32Le(at+4, uint32(len(name)))
		h.mem.WriteUint64Le(at+8, uint64(rec.NativeFunctionPtr))
	}

	h.call(exportInternalCalls, h.fns.internalCalls, api.EncodeU32(table), api.EncodeI32(count))
}

func (h *Host) createAssemblyLoadContext(name *byte) functable.ContextID {
	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.table.Strings.Bytes(name)
	ptr, ok := h.writeBytes(b)
	if !ok {
		return 0
	}
	defer h.release(ptr, uint32(len(b)))

	res, ok := h.call(exportCreateContext, h.fns.createContext, api.EncodeU32(ptr), api.EncodeU32(uint32(len(b))))
	if !ok {
		return 0
	}
	return functable.ContextID(api.DecodeI32(res[0]))
}

func (h *Host) unloadAssemblyLoadContext(alc functable.ContextID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.call(exportUnloadContext, h.fns.unloadContext, api.EncodeI32(int32(alc)))
}

func (h *Host) String() string {
	return fmt.Sprintf("wasmhost(%s)", h.module.Name())
}
