package typecache

import (
	"github.com/wippyai/clr-bridge/functable"
)

// Type is a managed type known to the bridge.
type Type struct {
	name string
	id   functable.TypeID
}

var nullType = &Type{}

// Null returns the sentinel for "no such type". It is never stored in a
// cache and compares equal only to itself.
func Null() *Type {
	return nullType
}

// NewType creates an uncached type value; pass it to Cache.CacheType to get
// the canonical instance.
func NewType(id functable.TypeID, name string) Type {
	return Type{id: id, name: name}
}

// ID returns the runtime-issued type id, zero for the null type.
func (t *Type) ID() functable.TypeID {
	return t.id
}

// Name returns the fully qualified type name.
func (t *Type) Name() string {
	return t.name
}

// IsNull reports whether t is the null sentinel (or a nil pointer).
func (t *Type) IsNull() bool {
	return t == nil || t == nullType
}

func (t *Type) String() string {
	if t.IsNull() {
		return "<null type>"
	}
	return t.name
}
