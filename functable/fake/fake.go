// Package fake provides an in-memory managed runtime behind a
// functable.Table, for tests that exercise the bridge without a real host.
//
// The fake decodes every string it receives with the table's char set and
// encodes every string it returns, so the bridge's marshaling runs exactly
// as it would against a native runtime.
package fake

import (
	"sync"
	"unsafe"

	"github.com/wippyai/clr-bridge/functable"
	"github.com/wippyai/clr-bridge/interop"
)

// TypeDef describes a type defined by a fake assembly.
type TypeDef struct {
	Name string
	ID   functable.TypeID
}

// AssemblyDef describes what loading a path yields.
type AssemblyDef struct {
	Path   string
	Name   string
	Types  []TypeDef
	ID     functable.AssemblyID // zero assigns the next sequential id
	Status functable.LoadStatus
}

// Load records one LoadManagedAssembly call.
type Load struct {
	Path    string
	Context functable.ContextID
}

// Upload records one SetInternalCalls call.
type Upload struct {
	Records *interop.InternalCall
	Names   []string
	Funcs   []uintptr
}

// Object records a live managed object.
type Object struct {
	TypeName string
	Args     []any
	Weak     bool
}

// Invocation records one InvokeMethod call.
type Invocation struct {
	Method string
	Args   []any
	Handle functable.ObjectHandle
}

// Runtime is the fake runtime state. Exported slices are call records.
type Runtime struct {
	assemblies   map[string]AssemblyDef
	loaded       map[functable.AssemblyID]AssemblyDef
	typeNames    map[functable.TypeID]string
	contexts     map[functable.ContextID]string
	objects      map[functable.ObjectHandle]Object
	Calls        []string
	Loads        []Load
	Uploads      []Upload
	Unloaded     []functable.ContextID
	Invocations  []Invocation
	Destroyed    []functable.ObjectHandle
	Callback     uintptr
	mu           sync.Mutex
	nextAssembly functable.AssemblyID
	nextContext  functable.ContextID
	nextObject   functable.ObjectHandle
	lastStatus   functable.LoadStatus
	charset      interop.CharSet
}

// New creates an empty fake runtime using cs at the boundary.
func New(cs interop.CharSet) *Runtime {
	return &Runtime{
		assemblies: make(map[string]AssemblyDef),
		loaded:     make(map[functable.AssemblyID]AssemblyDef),
		typeNames:  make(map[functable.TypeID]string),
		contexts:   make(map[functable.ContextID]string),
		objects:    make(map[functable.ObjectHandle]Object),
		nextObject: 0x100,
		charset:    cs,
	}
}

// AddAssembly makes def loadable by its path.
func (r *Runtime) AddAssembly(def AssemblyDef) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.assemblies[def.Path] = def
	for _, t := range def.Types {
		r.typeNames[t.ID] = t.Name
	}
}

// Object returns the live object for a handle.
func (r *Runtime) Object(h functable.ObjectHandle) (Object, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.objects[h]
	return o, ok
}

// CallCount returns how many times the named slot was called.
func (r *Runtime) CallCount(slot string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.Calls {
		if c == slot {
			n++
		}
	}
	return n
}

// UnloadedContexts returns a copy of Unloaded taken under the runtime's lock,
// for tests that unload from another goroutine.
func (r *Runtime) UnloadedContexts() []functable.ContextID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]functable.ContextID, len(r.Unloaded))
	copy(out, r.Unloaded)
	return out
}

// Table returns a table with every slot bound to this runtime.
func (r *Runtime) Table() *functable.Table {
	return &functable.Table{
		LoadManagedAssembly:       r.loadManagedAssembly,
		GetLastLoadStatus:         r.getLastLoadStatus,
		GetAssemblyName:           r.getAssemblyName,
		GetAssemblyTypes:          r.getAssemblyTypes,
		GetTypeName:               r.getTypeName,
		SetInternalCalls:          r.setInternalCalls,
		CreateAssemblyLoadContext: r.createAssemblyLoadContext,
		UnloadAssemblyLoadContext: r.unloadAssemblyLoadContext,
		SetExceptionCallback:      r.setExceptionCallback,
		CreateObject:              r.createObject,
		InvokeMethod:              r.invokeMethod,
		DestroyObject:             r.destroyObject,
		Strings:                   r.charset,
	}
}

func (r *Runtime) decode(p *byte) string {
	s, err := r.charset.Decode(p)
	if err != nil {
		panic(err)
	}
	return s
}

func (r *Runtime) encode(s string) *byte {
	buf, err := r.charset.Encode(s)
	if err != nil {
		panic(err)
	}
	return &buf[0]
}

func (r *Runtime) loadManagedAssembly(ctx functable.ContextID, path *byte) functable.AssemblyID {
	p := r.decode(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "LoadManagedAssembly")
	r.Loads = append(r.Loads, Load{Context: ctx, Path: p})

	def, ok := r.assemblies[p]
	if !ok {
		r.lastStatus = functable.LoadFileNotFound
		return 0
	}
	r.lastStatus = def.Status
	if def.Status != functable.LoadSuccess {
		return 0
	}

	id := def.ID
	if id == 0 {
		r.nextAssembly++
		id = r.nextAssembly
	}
	r.loaded[id] = def
	return id
}

func (r *Runtime) getLastLoadStatus() functable.LoadStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "GetLastLoadStatus")
	return r.lastStatus
}

func (r *Runtime) getAssemblyName(id functable.AssemblyID) *byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "GetAssemblyName")
	return r.encode(r.loaded[id].Name)
}

func (r *Runtime) getAssemblyTypes(id functable.AssemblyID, out *functable.TypeID, count *int32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := r.loaded[id].Types
	if out == nil {
		r.Calls = append(r.Calls, "GetAssemblyTypes(count)")
		*count = int32(len(types))
		return
	}
	r.Calls = append(r.Calls, "GetAssemblyTypes(fill)")
	n := min(int(*count), len(types))
	dst := unsafe.Slice(out, n)
	for i := 0; i < n; i++ {
		dst[i] = types[i].ID
	}
	*count = int32(n)
}

func (r *Runtime) getTypeName(id functable.TypeID) *byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "GetTypeName")
	return r.encode(r.typeNames[id])
}

func (r *Runtime) setInternalCalls(calls *interop.InternalCall, count int32) {
	records := unsafe.Slice(calls, count)
	up := Upload{Records: calls}
	for _, rec := range records {
		up.Names = append(up.Names, r.decode(rec.Name))
		up.Funcs = append(up.Funcs, rec.NativeFunctionPtr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "SetInternalCalls")
	r.Uploads = append(r.Uploads, up)
}

func (r *Runtime) createAssemblyLoadContext(name *byte) functable.ContextID {
	n := r.decode(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "CreateAssemblyLoadContext")
	r.nextContext++
	r.contexts[r.nextContext] = n
	return r.nextContext
}

func (r *Runtime) unloadAssemblyLoadContext(ctx functable.ContextID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "UnloadAssemblyLoadContext")
	delete(r.contexts, ctx)
	r.Unloaded = append(r.Unloaded, ctx)
}

func (r *Runtime) setExceptionCallback(cb uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "SetExceptionCallback")
	r.Callback = cb
}

func (r *Runtime) knownType(name string) bool {
	for _, n := range r.typeNames {
		if n == name {
			return true
		}
	}
	return false
}

func (r *Runtime) createObject(info *functable.ObjectCreateInfo) functable.ObjectHandle {
	typeName := r.decode(info.TypeName)
	args := DecodeArgs(info.ParameterTypes, info.Parameters, info.Length)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "CreateObject")
	if !r.knownType(typeName) {
		return 0
	}
	r.nextObject++
	r.objects[r.nextObject] = Object{TypeName: typeName, Args: args, Weak: info.IsWeakRef != 0}
	return r.nextObject
}

func (r *Runtime) invokeMethod(obj functable.ObjectHandle, method *byte, types *interop.ManagedType, values *uintptr, count int32) {
	inv := Invocation{
		Handle: obj,
		Method: r.decode(method),
		Args:   DecodeArgs(types, values, count),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "InvokeMethod")
	r.Invocations = append(r.Invocations, inv)
}

func (r *Runtime) destroyObject(obj functable.ObjectHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "DestroyObject")
	delete(r.objects, obj)
	r.Destroyed = append(r.Destroyed, obj)
}

// DecodeArgs reads a tagged parameter array the way the managed side does.
func DecodeArgs(types *interop.ManagedType, values *uintptr, count int32) []any {
	if types == nil || values == nil || count == 0 {
		return nil
	}
	ts := unsafe.Slice(types, count)
	vs := unsafe.Slice(values, count)
	out := make([]any, count)
	for i := range ts {
		if ts[i] == interop.ManagedPointer {
			out[i] = vs[i]
			continue
		}
		p := unsafe.Pointer(vs[i])
		switch ts[i] {
		case interop.ManagedSByte:
			out[i] = *(*int8)(p)
		case interop.ManagedByte:
			out[i] = *(*uint8)(p)
		case interop.ManagedShort:
			out[i] = *(*int16)(p)
		case interop.ManagedUShort:
			out[i] = *(*uint16)(p)
		case interop.ManagedInt:
			out[i] = *(*int32)(p)
		case interop.ManagedUInt:
			out[i] = *(*uint32)(p)
		case interop.ManagedLong:
			out[i] = *(*int64)(p)
		case interop.ManagedULong:
			out[i] = *(*uint64)(p)
		case interop.ManagedFloat:
			out[i] = *(*float32)(p)
		case interop.ManagedDouble:
			out[i] = *(*float64)(p)
		case interop.ManagedBool:
			out[i] = *(*int32)(p) != 0
		}
	}
	return out
}
