package interop

import (
	"fmt"
	"math"
	"reflect"
	"runtime"
	"unsafe"

	"github.com/wippyai/clr-bridge/errors"
)

// ManagedType tags one parameter value passed to the managed side.
type ManagedType int32

const (
	ManagedSByte ManagedType = iota
	ManagedByte
	ManagedShort
	ManagedUShort
	ManagedInt
	ManagedUInt
	ManagedLong
	ManagedULong
	ManagedFloat
	ManagedDouble
	ManagedBool
	ManagedPointer
)

var managedTypeNames = [...]string{
	ManagedSByte:   "SByte",
	ManagedByte:    "Byte",
	ManagedShort:   "Short",
	ManagedUShort:  "UShort",
	ManagedInt:     "Int",
	ManagedUInt:    "UInt",
	ManagedLong:    "Long",
	ManagedULong:   "ULong",
	ManagedFloat:   "Float",
	ManagedDouble:  "Double",
	ManagedBool:    "Bool",
	ManagedPointer: "Pointer",
}

func (t ManagedType) String() string {
	if t >= 0 && int(t) < len(managedTypeNames) {
		return managedTypeNames[t]
	}
	return fmt.Sprintf("ManagedType(%d)", int32(t))
}

// ManagedTypeOf returns the tag for a Go value, or false if the value has
// no managed parameter representation.
func ManagedTypeOf(v any) (ManagedType, bool) {
	switch v.(type) {
	case int8:
		return ManagedSByte, true
	case uint8:
		return ManagedByte, true
	case int16:
		return ManagedShort, true
	case uint16:
		return ManagedUShort, true
	case int32:
		return ManagedInt, true
	case uint32:
		return ManagedUInt, true
	case int64, int:
		return ManagedLong, true
	case uint64, uint:
		return ManagedULong, true
	case float32:
		return ManagedFloat, true
	case float64:
		return ManagedDouble, true
	case bool:
		return ManagedBool, true
	case uintptr, unsafe.Pointer:
		return ManagedPointer, true
	}
	return 0, false
}

// Params holds one call's parameter arrays: a tag per value and a word per
// value. Numeric values are boxed and the word is the box address; pointer
// values are passed as the word itself. Everything stays pinned until
// Release.
type Params struct {
	types  []ManagedType
	values []uintptr
	boxes  []any
	pinner runtime.Pinner
}

// MarshalParams boxes args for a CreateObject or InvokeMethod call.
func MarshalParams(phase errors.Phase, args []any) (*Params, error) {
	if len(args) > math.MaxInt32 {
		return nil, errors.Overflow(phase, []string{"args"}, len(args), "int32")
	}
	p := &Params{
		types:  make([]ManagedType, 0, len(args)),
		values: make([]uintptr, 0, len(args)),
	}
	for i, arg := range args {
		mt, ok := ManagedTypeOf(arg)
		if !ok {
			p.Release()
			err := errors.TypeMismatch(phase, []string{"arg", fmt.Sprint(i)}, typeName(arg), "")
			err.Detail = "no managed parameter representation"
			return nil, err
		}
		p.types = append(p.types, mt)
		p.values = append(p.values, p.box(arg))
	}
	if len(p.types) > 0 {
		p.pinner.Pin(&p.types[0])
		p.pinner.Pin(&p.values[0])
	}
	return p, nil
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

func (p *Params) box(arg any) uintptr {
	switch v := arg.(type) {
	case uintptr:
		return v
	case unsafe.Pointer:
		return uintptr(v)
	case int:
		return pinBox(p, int64(v))
	case uint:
		return pinBox(p, uint64(v))
	case bool:
		// Marshaled as a 4-byte BOOL.
		var b int32
		if v {
			b = 1
		}
		return pinBox(p, b)
	case int8:
		return pinBox(p, v)
	case uint8:
		return pinBox(p, v)
	case int16:
		return pinBox(p, v)
	case uint16:
		return pinBox(p, v)
	case int32:
		return pinBox(p, v)
	case uint32:
		return pinBox(p, v)
	case int64:
		return pinBox(p, v)
	case uint64:
		return pinBox(p, v)
	case float32:
		return pinBox(p, v)
	case float64:
		return pinBox(p, v)
	}
	return 0
}

func pinBox[T any](p *Params, v T) uintptr {
	b := new(T)
	*b = v
	p.pinner.Pin(b)
	p.boxes = append(p.boxes, b)
	return uintptr(unsafe.Pointer(b))
}

// String encodes s in cs and keeps the buffer pinned with the params.
func (p *Params) String(cs CharSet, s string) (*byte, error) {
	buf, err := cs.Encode(s)
	if err != nil {
		return nil, err
	}
	ptr := &buf[0]
	p.pinner.Pin(ptr)
	p.boxes = append(p.boxes, buf)
	return ptr, nil
}

// Len returns the number of parameters.
func (p *Params) Len() int32 {
	return int32(len(p.types))
}

// Types returns the tag array, or nil when there are no parameters.
func (p *Params) Types() *ManagedType {
	if len(p.types) == 0 {
		return nil
	}
	return &p.types[0]
}

// Values returns the value array, or nil when there are no parameters.
func (p *Params) Values() *uintptr {
	if len(p.values) == 0 {
		return nil
	}
	return &p.values[0]
}

// TypeList returns a copy of the tags.
func (p *Params) TypeList() []ManagedType {
	out := make([]ManagedType, len(p.types))
	copy(out, p.types)
	return out
}

// Release unpins every buffer. The arrays must not be used afterwards.
func (p *Params) Release() {
	p.pinner.Unpin()
	p.boxes = nil
}
