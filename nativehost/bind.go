package nativehost

import (
	"github.com/ebitengine/purego"

	"github.com/wippyai/clr-bridge/errors"
	"github.com/wippyai/clr-bridge/functable"
	"github.com/wippyai/clr-bridge/interop"
)

// EntryPoints holds the native address of every table slot. Zero means the
// entry point is unavailable.
type EntryPoints struct {
	LoadManagedAssembly       uintptr
	GetLastLoadStatus         uintptr
	GetAssemblyName           uintptr
	GetAssemblyTypes          uintptr
	GetTypeName               uintptr
	SetInternalCalls          uintptr
	CreateAssemblyLoadContext uintptr
	UnloadAssemblyLoadContext uintptr

	SetExceptionCallback uintptr
	CreateObject         uintptr
	InvokeMethod         uintptr
	DestroyObject        uintptr
}

// symbol pairs an exported shim symbol with its EntryPoints field.
type symbol struct {
	name     string
	key      string
	addr     func(*EntryPoints) *uintptr
	required bool
}

var symbols = []symbol{
	{"clr_load_managed_assembly", "assembly#LoadManagedAssembly", func(e *EntryPoints) *uintptr { return &e.LoadManagedAssembly }, true},
	{"clr_get_last_load_status", "assembly#GetLastLoadStatus", func(e *EntryPoints) *uintptr { return &e.GetLastLoadStatus }, true},
	{"clr_get_assembly_name", "assembly#GetAssemblyName", func(e *EntryPoints) *uintptr { return &e.GetAssemblyName }, true},
	{"clr_get_assembly_types", "assembly#GetAssemblyTypes", func(e *EntryPoints) *uintptr { return &e.GetAssemblyTypes }, true},
	{"clr_get_type_name", "type#GetTypeName", func(e *EntryPoints) *uintptr { return &e.GetTypeName }, true},
	{"clr_set_internal_calls", "interop#SetInternalCalls", func(e *EntryPoints) *uintptr { return &e.SetInternalCalls }, true},
	{"clr_create_assembly_load_context", "context#CreateAssemblyLoadContext", func(e *EntryPoints) *uintptr { return &e.CreateAssemblyLoadContext }, true},
	{"clr_unload_assembly_load_context", "context#UnloadAssemblyLoadContext", func(e *EntryPoints) *uintptr { return &e.UnloadAssemblyLoadContext }, true},
	{"clr_set_exception_callback", "host#SetExceptionCallback", func(e *EntryPoints) *uintptr { return &e.SetExceptionCallback }, false},
	{"clr_create_object", "object#CreateObject", func(e *EntryPoints) *uintptr { return &e.CreateObject }, false},
	{"clr_invoke_method", "object#InvokeMethod", func(e *EntryPoints) *uintptr { return &e.InvokeMethod }, false},
	{"clr_destroy_object", "object#DestroyObject", func(e *EntryPoints) *uintptr { return &e.DestroyObject }, false},
}

// Missing returns the "group#slot" keys of required entry points that are
// zero.
func (e EntryPoints) Missing() []string {
	var missing []string
	for _, s := range symbols {
		if s.required && *s.addr(&e) == 0 {
			missing = append(missing, s.key)
		}
	}
	return missing
}

// Bind builds a table calling through ep. Strings cross the boundary in cs.
// Optional entry points left at zero leave their slots nil.
func Bind(ep EntryPoints, cs interop.CharSet) (*functable.Table, error) {
	if missing := ep.Missing(); len(missing) > 0 {
		return nil, errors.NewMissingSlotsError(missing)
	}

	t := &functable.Table{Strings: cs}
	purego.RegisterFunc(&t.LoadManagedAssembly, ep.LoadManagedAssembly)
	purego.RegisterFunc(&t.GetLastLoadStatus, ep.GetLastLoadStatus)
	purego.RegisterFunc(&t.GetAssemblyName, ep.GetAssemblyName)
	purego.RegisterFunc(&t.GetAssemblyTypes, ep.GetAssemblyTypes)
	purego.RegisterFunc(&t.GetTypeName, ep.GetTypeName)
	purego.RegisterFunc(&t.SetInternalCalls, ep.SetInternalCalls)
	purego.RegisterFunc(&t.CreateAssemblyLoadContext, ep.CreateAssemblyLoadContext)
	purego.RegisterFunc(&t.UnloadAssemblyLoadContext, ep.UnloadAssemblyLoadContext)

	if ep.SetExceptionCallback != 0 {
		purego.RegisterFunc(&t.SetExceptionCallback, ep.SetExceptionCallback)
	}
	if ep.CreateObject != 0 {
		purego.RegisterFunc(&t.CreateObject, ep.CreateObject)
	}
	if ep.InvokeMethod != 0 {
		purego.RegisterFunc(&t.InvokeMethod, ep.InvokeMethod)
	}
	if ep.DestroyObject != 0 {
		purego.RegisterFunc(&t.DestroyObject, ep.DestroyObject)
	}
	return t, nil
}
