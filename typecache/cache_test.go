package typecache

import (
	"sync"
	"testing"

	"github.com/wippyai/clr-bridge/functable"
)

func TestCacheTypeIdentity(t *testing.T) {
	c := New()

	a := c.CacheType(NewType(7, "App.Program"))
	b := c.CacheType(NewType(7, "App.Program"))
	if a != b {
		t.Fatal("same id should return the same instance")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}

	other := c.CacheType(NewType(8, "App.Service"))
	if other == a {
		t.Error("different ids should not share an instance")
	}
}

func TestCacheTypeKeepsFirstName(t *testing.T) {
	c := New()
	a := c.CacheType(NewType(7, "App.Program"))
	b := c.CacheType(NewType(7, "App.Renamed"))
	if b != a || b.Name() != "App.Program" {
		t.Errorf("re-caching should return the original entry, got %q", b.Name())
	}
	if c.GetTypeByName("App.Renamed") != nil {
		t.Error("re-caching should not add a name entry")
	}
}

func TestCacheTypeZeroID(t *testing.T) {
	c := New()
	if got := c.CacheType(NewType(0, "Broken")); !got.IsNull() {
		t.Errorf("zero id = %v, want null type", got)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestGetTypeByName(t *testing.T) {
	c := New()
	want := c.CacheType(NewType(1, "App.Program"))
	c.CacheType(NewType(2, "App.ProgramHelpers"))

	tests := []struct {
		name string
		want *Type
	}{
		{"App.Program", want},
		{"App.Prog", nil},
		{"app.program", nil},
		{"App.Program ", nil},
		{"", nil},
	}
	for _, tt := range tests {
		if got := c.GetTypeByName(tt.name); got != tt.want {
			t.Errorf("GetTypeByName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLookupReturnsSentinel(t *testing.T) {
	c := New()
	got := c.Lookup("NoSuchType")
	if got != Null() || !got.IsNull() {
		t.Fatalf("Lookup miss = %v, want Null()", got)
	}
	if got.ID() != 0 || got.Name() != "" {
		t.Error("null type should have zero id and empty name")
	}
	if got.String() != "<null type>" {
		t.Errorf("String() = %q", got.String())
	}

	p := c.CacheType(NewType(3, "App.Program"))
	if c.Lookup("App.Program") != p {
		t.Error("Lookup hit should return the cached entry")
	}
}

func TestGetTypeByID(t *testing.T) {
	c := New()
	p := c.CacheType(NewType(3, "App.Program"))
	if c.GetTypeByID(3) != p {
		t.Error("GetTypeByID hit")
	}
	if c.GetTypeByID(4) != nil {
		t.Error("GetTypeByID miss should be nil")
	}
}

func TestTypesOrderAndClear(t *testing.T) {
	c := New()
	for i, name := range []string{"C", "A", "B"} {
		c.CacheType(NewType(functable.TypeID(i+1), name))
	}
	types := c.Types()
	if len(types) != 3 || types[0].Name() != "C" || types[2].Name() != "B" {
		t.Errorf("Types() order = %v", types)
	}

	c.Clear()
	if c.Len() != 0 || c.GetTypeByName("A") != nil || len(c.Types()) != 0 {
		t.Error("Clear should drop every entry")
	}
}

func TestRemove(t *testing.T) {
	c := New()
	program := c.CacheType(NewType(0x1001, "App.Program"))
	service := c.CacheType(NewType(0x1002, "App.Service"))

	if n := c.Remove(0x1001, 0x7777); n != 1 {
		t.Fatalf("Remove = %d, want 1", n)
	}
	if c.GetTypeByID(0x1001) != nil || !c.Lookup("App.Program").IsNull() {
		t.Error("removed type is still reachable")
	}
	if c.Lookup("App.Service") != service {
		t.Error("unrelated entry should survive")
	}
	if types := c.Types(); len(types) != 1 || types[0] != service {
		t.Errorf("Types() = %v", types)
	}

	reloaded := c.CacheType(NewType(0x9001, "App.Program"))
	if reloaded == program {
		t.Fatal("a new id must not resolve to the removed instance")
	}
	if c.Lookup("App.Program") != reloaded {
		t.Error("the next type cached under a freed name should own it")
	}
	if c.Remove() != 0 {
		t.Error("empty Remove should report zero")
	}
}

func TestRemovePassesNameToSurvivor(t *testing.T) {
	c := New()
	first := c.CacheType(NewType(1, "Shared.Type"))
	second := c.CacheType(NewType(2, "Shared.Type"))
	if c.Lookup("Shared.Type") != first {
		t.Fatal("first cached entry should own the name")
	}

	c.Remove(1)
	if c.Lookup("Shared.Type") != second {
		t.Error("name should pass to the surviving entry")
	}
	c.Remove(2)
	if !c.Lookup("Shared.Type").IsNull() {
		t.Error("name should be freed once no entry carries it")
	}
}

func TestCacheTypeConcurrent(t *testing.T) {
	c := New()
	const workers = 16
	results := make([]*Type, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.CacheType(NewType(42, "App.Shared"))
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatalf("worker %d got a distinct instance", i)
		}
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}
