package bridge

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/clr-bridge/errors"
	"github.com/wippyai/clr-bridge/functable"
	"github.com/wippyai/clr-bridge/interop"
	"github.com/wippyai/clr-bridge/typecache"
)

// InternalCallName returns the name the runtime resolves an internal call
// by: "{className}+{memberName}, {assemblyName}".
func InternalCallName(className, memberName, assemblyName string) string {
	return className + "+" + memberName + ", " + assemblyName
}

// Assembly is one load attempt in a LoadContext. When LoadStatus is not
// LoadSuccess, Name is empty and the assembly has no types.
type Assembly struct {
	ctx    *LoadContext
	calls  *interop.CallRegistry
	name   string
	path   string
	types  []*typecache.Type
	id     functable.AssemblyID
	status functable.LoadStatus
	mu     sync.Mutex
}

// ID returns the runtime-issued assembly id, zero if the load failed.
func (a *Assembly) ID() functable.AssemblyID {
	return a.id
}

// Name returns the assembly's simple name.
func (a *Assembly) Name() string {
	return a.name
}

// Path returns the path the assembly was loaded from.
func (a *Assembly) Path() string {
	return a.path
}

// LoadStatus returns the status the runtime reported for the load.
func (a *Assembly) LoadStatus() functable.LoadStatus {
	return a.status
}

// Loaded reports whether the load succeeded.
func (a *Assembly) Loaded() bool {
	return a.status == functable.LoadSuccess
}

// Context returns the load context owning the assembly.
func (a *Assembly) Context() *LoadContext {
	return a.ctx
}

// GetType looks a type up by qualified name. A miss returns typecache.Null.
func (a *Assembly) GetType(name string) *typecache.Type {
	return a.ctx.cache.Lookup(name)
}

// GetTypes returns the assembly's types in the order the runtime reported
// them.
func (a *Assembly) GetTypes() []*typecache.Type {
	out := make([]*typecache.Type, len(a.types))
	copy(out, a.types)
	return out
}

// AddInternalCall registers fn as the native implementation of
// className.memberName. fn must be non-zero and the assembly must be loaded;
// violating either panics. The error reports a name the runtime's char set
// cannot represent.
func (a *Assembly) AddInternalCall(className, memberName string, fn uintptr) error {
	errors.Assert(a.Loaded(), errors.New(errors.PhaseRegister, errors.KindInvalidInput).
		Path(className, memberName).
		Detail("assembly %q did not load (%s)", a.path, a.status).
		Build())

	a.mu.Lock()
	defer a.mu.Unlock()

	errors.Assert(a.calls != nil, errors.Closed(errors.PhaseRegister, "assembly "+a.name))

	name := InternalCallName(className, memberName, a.name)
	if err := a.calls.Add(name, fn); err != nil {
		return errors.Registration(className, memberName, err)
	}
	return nil
}

// InternalCallNames returns the qualified names registered so far.
func (a *Assembly) InternalCallNames() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.calls == nil {
		return nil
	}
	return a.calls.Names()
}

// UploadInternalCalls hands every registered record to the runtime in one
// call. The records stay pinned until the context is unloaded, so uploading
// again after more registrations is fine.
func (a *Assembly) UploadInternalCalls() {
	a.mu.Lock()
	defer a.mu.Unlock()

	errors.Assert(a.calls != nil, errors.Closed(errors.PhaseUpload, "assembly "+a.name))

	records, count := a.calls.Records()
	a.ctx.table.SetInternalCalls(records, count)

	Logger().Debug("internal calls uploaded",
		zap.String("assembly", a.name),
		zap.Int32("count", count))
}

func (a *Assembly) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.calls != nil {
		a.calls.Release()
		a.calls = nil
	}
}
