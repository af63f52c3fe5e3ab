package nativehost

import (
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"unsafe"

	bridgeerrors "github.com/wippyai/clr-bridge/errors"
	"github.com/wippyai/clr-bridge/interop"
)

func TestOpen_NotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libnothing.so")
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected error opening a missing library")
	}
	if !errors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseHost, Kind: bridgeerrors.KindNotFound}) {
		t.Errorf("got %v, want host not_found", err)
	}
}

func TestBind_MissingRequired(t *testing.T) {
	_, err := Bind(EntryPoints{}, interop.CharSetUTF8)
	var missing *bridgeerrors.MissingSlotsError
	if !errors.As(err, &missing) {
		t.Fatalf("got %T %v, want MissingSlotsError", err, err)
	}
	if len(missing.Slots) != 8 {
		t.Errorf("got %d missing slots, want 8", len(missing.Slots))
	}
	if !strings.Contains(err.Error(), "LoadManagedAssembly") {
		t.Errorf("error should name LoadManagedAssembly: %v", err)
	}
}

func TestEntryPoints_Missing(t *testing.T) {
	ep := EntryPoints{
		LoadManagedAssembly:       1,
		GetLastLoadStatus:         2,
		GetAssemblyName:           3,
		GetAssemblyTypes:          4,
		GetTypeName:               5,
		SetInternalCalls:          6,
		CreateAssemblyLoadContext: 7,
	}
	missing := ep.Missing()
	if len(missing) != 1 || missing[0] != "context#UnloadAssemblyLoadContext" {
		t.Errorf("Missing() = %v", missing)
	}

	ep.UnloadAssemblyLoadContext = 8
	if missing := ep.Missing(); len(missing) != 0 {
		t.Errorf("optional entry points must not be reported: %v", missing)
	}
}

func TestSymbols(t *testing.T) {
	seen := make(map[string]bool)
	fields := make(map[*uintptr]bool)
	var ep EntryPoints
	for _, s := range symbols {
		if !strings.HasPrefix(s.name, "clr_") {
			t.Errorf("symbol %q lacks the clr_ prefix", s.name)
		}
		if seen[s.name] {
			t.Errorf("duplicate symbol %q", s.name)
		}
		seen[s.name] = true

		p := s.addr(&ep)
		if fields[p] {
			t.Errorf("symbol %q shares a field with another symbol", s.name)
		}
		fields[p] = true
	}
	if len(symbols) != 12 {
		t.Errorf("got %d symbols, want 12", len(symbols))
	}
}

func TestDecodeMessage(t *testing.T) {
	if got := decodeMessage(interop.CharSetUTF8, 0); got != "" {
		t.Errorf("nil message = %q", got)
	}

	for _, cs := range []interop.CharSet{interop.CharSetUTF8, interop.CharSetWide} {
		buf, err := cs.Encode("System.InvalidOperationException: boom")
		if err != nil {
			t.Fatal(err)
		}
		got := decodeMessage(cs, uintptr(unsafe.Pointer(&buf[0])))
		runtime.KeepAlive(buf)
		if got != "System.InvalidOperationException: boom" {
			t.Errorf("%s: got %q", cs, got)
		}
	}
}
