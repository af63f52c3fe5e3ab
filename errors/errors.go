package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseTable    Phase = "table"    // function table binding
	PhaseMarshal  Phase = "marshal"  // native <-> boundary string/array conversion
	PhaseLoad     Phase = "load"     // assembly loading
	PhaseLookup   Phase = "lookup"   // type lookup
	PhaseRegister Phase = "register" // internal call registration
	PhaseUpload   Phase = "upload"   // internal call upload
	PhaseContext  Phase = "context"  // load context lifecycle
	PhaseObject   Phase = "object"   // managed object creation and invocation
	PhaseHost     Phase = "host"     // runtime host setup
)

// Kind categorizes the error
type Kind string

const (
	KindNotInitialized Kind = "not_initialized"
	KindNilPointer     Kind = "nil_pointer"
	KindNotFound       Kind = "not_found"
	KindInvalidInput   Kind = "invalid_input"
	KindInvalidUTF8    Kind = "invalid_utf8"
	KindUnsupported    Kind = "unsupported"
	KindTypeMismatch   Kind = "type_mismatch"
	KindMissingSlot    Kind = "missing_slot"
	KindRegistration   Kind = "registration"
	KindClosed         Kind = "closed"
	KindInstantiation  Kind = "instantiation"
	KindOverflow       Kind = "overflow"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value       any
	Cause       error
	Phase       Phase
	Kind        Kind
	GoType      string
	ManagedType string
	Detail      string
	Path        []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.ManagedType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.ManagedType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", managed type ")
			b.WriteString(e.ManagedType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("managed type ")
			b.WriteString(e.ManagedType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.ManagedType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// ManagedType sets the managed-side type name
func (b *Builder) ManagedType(t string) *Builder {
	b.err.ManagedType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Assert panics with err when cond is false.
func Assert(cond bool, err *Error) {
	if !cond {
		panic(err)
	}
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, managedType string) *Error {
	return &Error{
		Phase:       phase,
		Kind:        KindTypeMismatch,
		Path:        path,
		GoType:      goType,
		ManagedType: managedType,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		GoType: goType,
		Detail: "nil pointer",
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:       phase,
		Kind:        KindOverflow,
		Path:        path,
		ManagedType: targetType,
		Detail:      fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:       value,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Closed creates an error for use of a released component
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", component),
	}
}

// Registration creates an internal call registration error
func Registration(className, memberName string, cause error) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s+%s", className, memberName),
		Cause:  cause,
	}
}

// Instantiation creates a managed object creation error
func Instantiation(typeName string, cause error) *Error {
	return &Error{
		Phase:       PhaseObject,
		Kind:        KindInstantiation,
		ManagedType: typeName,
		Detail:      "create instance",
		Cause:       cause,
	}
}

// MissingSlot represents a single unbound function table slot
type MissingSlot struct {
	Group string // e.g., "assembly"
	Slot  string // e.g., "LoadManagedAssembly"
}

// MissingSlotsError is returned when a function table is used with required slots unbound
type MissingSlotsError struct {
	Slots []MissingSlot
}

// NewMissingSlotsError creates an error from a list of "group#slot" strings
func NewMissingSlotsError(slots []string) *MissingSlotsError {
	result := &MissingSlotsError{
		Slots: make([]MissingSlot, 0, len(slots)),
	}
	for _, s := range slots {
		group, slot := parseSlotKey(s)
		result.Slots = append(result.Slots, MissingSlot{
			Group: group,
			Slot:  slot,
		})
	}
	return result
}

func parseSlotKey(key string) (group, slot string) {
	g, s, found := strings.Cut(key, "#")
	if found {
		return g, s
	}
	return "", key
}

func (e *MissingSlotsError) Error() string {
	if len(e.Slots) == 0 {
		return "[table] missing_slot: no slots specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d function table slot(s):\n", len(e.Slots)))

	// Group for cleaner output
	byGroup := make(map[string][]string)
	var order []string
	for _, s := range e.Slots {
		if _, exists := byGroup[s.Group]; !exists {
			order = append(order, s.Group)
		}
		byGroup[s.Group] = append(byGroup[s.Group], s.Slot)
	}

	for _, g := range order {
		b.WriteString("\n  ")
		if g == "" {
			b.WriteString("(ungrouped)")
		} else {
			b.WriteString(g)
		}
		b.WriteString(":\n")
		for _, slot := range byGroup[g] {
			b.WriteString("    - ")
			b.WriteString(slot)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingSlotsError) Is(target error) bool {
	_, ok := target.(*MissingSlotsError)
	return ok
}
