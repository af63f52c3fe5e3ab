package bridge

import (
	"errors"
	"runtime"
	"testing"
	"time"

	bridgeerrors "github.com/wippyai/clr-bridge/errors"
	"github.com/wippyai/clr-bridge/functable"
	"github.com/wippyai/clr-bridge/functable/fake"
	"github.com/wippyai/clr-bridge/interop"
)

func TestCreateLoadContext(t *testing.T) {
	h, rt := newTestHost(t, nil)

	a, err := h.CreateLoadContext("plugins")
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.CreateLoadContext("scripts")
	if err != nil {
		t.Fatal(err)
	}

	if a.ID() == b.ID() {
		t.Error("contexts must get distinct ids")
	}
	if a.Name() != "plugins" || b.Name() != "scripts" {
		t.Errorf("names = %q, %q", a.Name(), b.Name())
	}
	if got := h.Contexts(); len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("Contexts() = %v", got)
	}
	if rt.CallCount("CreateAssemblyLoadContext") != 2 {
		t.Error("expected two runtime context creations")
	}

	if _, err := h.CreateLoadContext("bad\x00name"); err == nil {
		t.Error("expected error for unencodable name")
	}
}

func TestLoadContext_Unload(t *testing.T) {
	h, rt := newTestHost(t, nil)
	alc := newTestContext(t, h)
	keep := newTestContext(t, h)

	asm := alc.LoadAssembly("App.dll")
	service := asm.GetType("App.Service")
	obj1, _ := alc.CreateObject(service)
	obj2, _ := alc.CreateObject(asm.GetType("App.Program"))

	alc.Unload()

	if !alc.Unloaded() {
		t.Error("Unloaded() should report true")
	}
	if len(rt.Unloaded) != 1 || rt.Unloaded[0] != alc.ID() {
		t.Errorf("runtime unloaded %v, want [%d]", rt.Unloaded, alc.ID())
	}
	if len(rt.Destroyed) != 2 || rt.Destroyed[0] != obj1.Handle() || rt.Destroyed[1] != obj2.Handle() {
		t.Errorf("destroyed %v, want both objects in creation order", rt.Destroyed)
	}
	if got := h.Contexts(); len(got) != 1 || got[0] != keep {
		t.Errorf("Contexts() after unload = %v", got)
	}

	// Only alc referenced App's types, so the host cache drops them.
	if !asm.GetType("App.Program").IsNull() {
		t.Error("types of an unloaded context should be evicted")
	}
	if h.TypeCache().Len() != 0 {
		t.Errorf("host cache holds %d types after unload", h.TypeCache().Len())
	}

	expectPanic(t, bridgeerrors.KindClosed, func() {
		alc.LoadAssembly("App.dll")
	})
	_, err := alc.CreateObject(service)
	if !errors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseObject, Kind: bridgeerrors.KindClosed}) {
		t.Errorf("CreateObject after unload = %v, want closed", err)
	}

	alc.Unload()
	if len(rt.Unloaded) != 1 {
		t.Error("second Unload must not reach the runtime")
	}
	obj1.Destroy()
	if len(rt.Destroyed) != 2 {
		t.Error("objects destroyed by unload must not be destroyed again")
	}
}

func TestLoadContext_UnloadThenReload(t *testing.T) {
	h, rt := newTestHost(t, nil)

	a, _ := h.CreateLoadContext("a")
	stale := a.LoadAssembly("App.dll").GetType("App.Program")
	a.Unload()

	// The runtime hands out fresh ids for the reloaded assembly.
	reloaded := appAssembly
	reloaded.Types = []fake.TypeDef{
		{Name: "App.Program", ID: 0x9001},
		{Name: "App.Service", ID: 0x9002},
	}
	rt.AddAssembly(reloaded)

	b, _ := h.CreateLoadContext("b")
	asm := b.LoadAssembly("App.dll")
	types := asm.GetTypes()
	if len(types) != 2 || types[0].ID() != 0x9001 {
		t.Fatalf("GetTypes() = %v", types)
	}

	got := asm.GetType("App.Program")
	if got != types[0] {
		t.Fatalf("GetType(App.Program) id = %#x, want the reloaded instance %#x", got.ID(), types[0].ID())
	}
	if got == stale {
		t.Error("lookup resolved to the type of the unloaded context")
	}
	if b.GetType("App.Service").ID() != 0x9002 {
		t.Errorf("App.Service id = %#x", b.GetType("App.Service").ID())
	}
}

func TestLoadContext_UnloadKeepsSharedTypes(t *testing.T) {
	h, _ := newTestHost(t, nil)

	a, _ := h.CreateLoadContext("a")
	b, _ := h.CreateLoadContext("b")
	program := a.LoadAssembly("App.dll").GetType("App.Program")
	b.LoadAssembly("App.dll")
	b.LoadAssembly("Lib.dll")

	a.Unload()
	if got := b.GetType("App.Program"); got != program {
		t.Errorf("type still referenced by a live context was evicted: %v", got)
	}

	b.Unload()
	if h.TypeCache().Len() != 0 {
		t.Errorf("host cache holds %d types after every context unloaded", h.TypeCache().Len())
	}
}

// dropHost builds a host with pinned internal call storage and returns only
// the id of its context, leaving the host unreachable.
func dropHost(t *testing.T, rt *fake.Runtime) functable.ContextID {
	t.Helper()
	h, err := New(rt.Table(), nil)
	if err != nil {
		t.Fatal(err)
	}
	alc, err := h.CreateLoadContext("dropped")
	if err != nil {
		t.Fatal(err)
	}
	asm := alc.LoadAssembly("App.dll")
	if err := asm.AddInternalCall("App.Native", "Log", 0x1000); err != nil {
		t.Fatal(err)
	}
	asm.UploadInternalCalls()
	return alc.ID()
}

func TestHost_CollectedWithoutClose(t *testing.T) {
	rt := fake.New(interop.CharSetWide)
	rt.AddAssembly(appAssembly)

	id := dropHost(t, rt)

	// A leaked pin would crash the process from the finalizer goroutine
	// during these collections.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		if unloaded := rt.UnloadedContexts(); len(unloaded) == 1 {
			if unloaded[0] != id {
				t.Fatalf("unloaded context %d, want %d", unloaded[0], id)
			}
			runtime.GC()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("host was not cleaned up after it became unreachable")
}

func TestHost_Close(t *testing.T) {
	rt := fake.New(interop.CharSetUTF8)
	rt.AddAssembly(appAssembly)
	h, err := New(rt.Table(), nil)
	if err != nil {
		t.Fatal(err)
	}

	a, _ := h.CreateLoadContext("a")
	b, _ := h.CreateLoadContext("b")
	a.LoadAssembly("App.dll")

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !a.Unloaded() || !b.Unloaded() {
		t.Error("Close must unload every context")
	}
	if len(rt.Unloaded) != 2 {
		t.Errorf("runtime unloaded %v", rt.Unloaded)
	}
	if h.TypeCache().Len() != 0 {
		t.Error("Close should clear the host cache")
	}
	if len(h.Contexts()) != 0 {
		t.Error("no contexts should remain")
	}
	runtime.GC()
	if len(rt.UnloadedContexts()) != 2 {
		t.Error("a closed host must not unload its contexts again when collected")
	}

	_, err = h.CreateLoadContext("c")
	if !errors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseContext, Kind: bridgeerrors.KindClosed}) {
		t.Errorf("CreateLoadContext after Close = %v, want closed", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestHost_SetExceptionCallback(t *testing.T) {
	h, rt := newTestHost(t, nil)

	if err := h.SetExceptionCallback(0xdead); err != nil {
		t.Fatalf("SetExceptionCallback failed: %v", err)
	}
	if rt.Callback != 0xdead {
		t.Errorf("runtime callback = %#x", rt.Callback)
	}
	expectPanic(t, bridgeerrors.KindNilPointer, func() {
		h.SetExceptionCallback(0)
	})

	table := fake.New(interop.CharSetUTF8).Table()
	table.SetExceptionCallback = nil
	bare, err := New(table, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := bare.SetExceptionCallback(0xdead); !errors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseHost, Kind: bridgeerrors.KindUnsupported}) {
		t.Errorf("got %v, want unsupported", err)
	}
}

func TestCacheScope_String(t *testing.T) {
	if CacheScopeHost.String() != "host" || CacheScopeContext.String() != "context" {
		t.Error("unexpected scope names")
	}
	if CacheScope(7).String() != "CacheScope(7)" {
		t.Errorf("got %q", CacheScope(7).String())
	}
}
