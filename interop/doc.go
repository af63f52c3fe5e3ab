// Package interop converts Go values into the representations the managed
// runtime's function table expects, and owns the native-side storage those
// representations live in.
//
// # Strings
//
// Every string crossing the boundary is a NUL-terminated buffer in the
// table's CharSet:
//
//	CharSetWide  UTF-16LE, two-byte terminator (Windows wchar_t hosts)
//	CharSetUTF8  UTF-8, one-byte terminator
//
// Encode produces such a buffer, Decode copies one returned by the runtime
// back into a Go string. Decode never retains the runtime's pointer.
//
// # Ownership
//
// Buffers the runtime reads after a call returns (internal call names,
// the internal call record array) are kept in a NameStore or CallRegistry
// and pinned with runtime.Pinner until Release. Buffers used only for the
// duration of one call (assembly paths, method names, object parameters)
// are owned by the caller and may be released as soon as the call returns.
package interop
