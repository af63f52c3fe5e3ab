package functable

import (
	"fmt"
	"strings"

	"github.com/wippyai/clr-bridge/errors"
	"github.com/wippyai/clr-bridge/interop"
)

// ContextID identifies an assembly load context inside the runtime host.
type ContextID int32

// AssemblyID identifies a loaded assembly inside the runtime host.
type AssemblyID int32

// TypeID is the runtime-issued identity of a managed type. Zero is never a
// valid type.
type TypeID uintptr

// ObjectHandle is a runtime-issued handle to a managed object.
type ObjectHandle uintptr

// LoadStatus is the outcome of the most recent LoadManagedAssembly call.
type LoadStatus int32

const (
	LoadSuccess LoadStatus = iota
	LoadFileNotFound
	LoadFileLoadFailure
	LoadInvalidFilePath
	LoadInvalidAssembly
	LoadUnknownError
)

func (s LoadStatus) String() string {
	switch s {
	case LoadSuccess:
		return "Success"
	case LoadFileNotFound:
		return "FileNotFound"
	case LoadFileLoadFailure:
		return "FileLoadFailure"
	case LoadInvalidFilePath:
		return "InvalidFilePath"
	case LoadInvalidAssembly:
		return "InvalidAssembly"
	case LoadUnknownError:
		return "UnknownError"
	default:
		return fmt.Sprintf("LoadStatus(%d)", int32(s))
	}
}

// ObjectCreateInfo describes a CreateObject request.
// Layout matches the managed ObjectCreateInfo struct; IsWeakRef is a 4-byte BOOL.
type ObjectCreateInfo struct {
	TypeName       *byte
	IsWeakRef      int32
	Parameters     *uintptr
	ParameterTypes *interop.ManagedType
	Length         int32
}

// Table is the set of runtime entry points. Strings are NUL-terminated in
// the Strings char set; strings returned by the runtime are owned by the
// runtime and valid only until the next call.
type Table struct {
	// LoadManagedAssembly loads the assembly at path into a context and
	// returns its id. The outcome is read with GetLastLoadStatus.
	LoadManagedAssembly func(ctx ContextID, path *byte) AssemblyID
	GetLastLoadStatus   func() LoadStatus
	GetAssemblyName     func(id AssemblyID) *byte

	// GetAssemblyTypes writes the required count when out is nil, otherwise
	// fills out with up to *count ids and stores the number written.
	GetAssemblyTypes func(id AssemblyID, out *TypeID, count *int32)
	GetTypeName      func(id TypeID) *byte
	SetInternalCalls func(calls *interop.InternalCall, count int32)

	CreateAssemblyLoadContext func(name *byte) ContextID
	UnloadAssemblyLoadContext func(ctx ContextID)

	// Optional.
	SetExceptionCallback func(callback uintptr)
	CreateObject         func(info *ObjectCreateInfo) ObjectHandle
	InvokeMethod         func(obj ObjectHandle, method *byte, types *interop.ManagedType, values *uintptr, count int32)
	DestroyObject        func(obj ObjectHandle)

	Strings interop.CharSet
}

// Validate returns a MissingSlotsError naming every nil required slot.
func (t *Table) Validate() error {
	if t == nil {
		return errors.NotInitialized(errors.PhaseTable, "function table")
	}

	var missing []string
	check := func(bound bool, key string) {
		if !bound {
			missing = append(missing, key)
		}
	}
	check(t.LoadManagedAssembly != nil, "assembly#LoadManagedAssembly")
	check(t.GetLastLoadStatus != nil, "assembly#GetLastLoadStatus")
	check(t.GetAssemblyName != nil, "assembly#GetAssemblyName")
	check(t.GetAssemblyTypes != nil, "assembly#GetAssemblyTypes")
	check(t.GetTypeName != nil, "type#GetTypeName")
	check(t.SetInternalCalls != nil, "interop#SetInternalCalls")
	check(t.CreateAssemblyLoadContext != nil, "context#CreateAssemblyLoadContext")
	check(t.UnloadAssemblyLoadContext != nil, "context#UnloadAssemblyLoadContext")

	if len(missing) > 0 {
		return errors.NewMissingSlotsError(missing)
	}
	return nil
}

// MustBeBound panics if any required slot is nil.
func (t *Table) MustBeBound() {
	if err := t.Validate(); err != nil {
		panic(errors.Wrap(errors.PhaseTable, errors.KindMissingSlot, err, "function table used before initialization"))
	}
}

// SupportsObjects reports whether all managed object slots are bound.
func (t *Table) SupportsObjects() bool {
	return t.CreateObject != nil && t.InvokeMethod != nil && t.DestroyObject != nil
}

// SupportsExceptionCallback reports whether SetExceptionCallback is bound.
func (t *Table) SupportsExceptionCallback() bool {
	return t.SetExceptionCallback != nil
}

// String copies a runtime-owned string. Undecodable bytes are replaced
// with U+FFFD.
func (t *Table) String(p *byte) string {
	s, err := t.Strings.Decode(p)
	if err != nil {
		return strings.ToValidUTF8(string(t.Strings.Bytes(p)), "\uFFFD")
	}
	return s
}
