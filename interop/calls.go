package interop

import (
	"math"
	"runtime"

	"github.com/wippyai/clr-bridge/errors"
)

// InternalCall is one record of the table uploaded to the runtime.
// Layout matches { const char_t* Name; void* NativeFunctionPtr; }.
type InternalCall struct {
	Name              *byte
	NativeFunctionPtr uintptr
}

// CallRegistry accumulates internal call records together with the storage
// backing their names.
type CallRegistry struct {
	names  *NameStore
	pinned *InternalCall
	calls  []InternalCall
	pinner runtime.Pinner
}

// NewCallRegistry creates an empty registry encoding names with cs.
func NewCallRegistry(cs CharSet) *CallRegistry {
	return &CallRegistry{names: NewNameStore(cs)}
}

// Add stores a durable copy of name and appends a {name, fn} record.
func (r *CallRegistry) Add(name string, fn uintptr) error {
	errors.Assert(fn != 0, errors.NilPointer(errors.PhaseRegister, []string{name}, "uintptr"))

	p, err := r.names.Store(name)
	if err != nil {
		return err
	}
	r.calls = append(r.calls, InternalCall{Name: p, NativeFunctionPtr: fn})
	return nil
}

// Len returns the number of records.
func (r *CallRegistry) Len() int {
	return len(r.calls)
}

// Names returns the registered qualified names in registration order.
func (r *CallRegistry) Names() []string {
	return r.names.Names()
}

// Records returns the record array and its length, pinned so the runtime
// may keep reading it after the upload call returns. The address changes
// only if records were added since the previous call.
func (r *CallRegistry) Records() (*InternalCall, int32) {
	if len(r.calls) == 0 {
		return nil, 0
	}
	errors.Assert(len(r.calls) <= math.MaxInt32,
		errors.Overflow(errors.PhaseUpload, []string{"InternalCalls"}, len(r.calls), "int32"))

	head := &r.calls[0]
	if head != r.pinned {
		r.pinner.Unpin()
		r.pinner.Pin(head)
		r.pinned = head
	}
	return head, int32(len(r.calls))
}

// Release unpins the record array and every name. The registry is empty
// afterwards.
func (r *CallRegistry) Release() {
	r.pinner.Unpin()
	r.pinned = nil
	r.calls = nil
	r.names.Release()
}
