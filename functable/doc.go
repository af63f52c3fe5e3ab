// Package functable defines the fixed set of entry points through which the
// bridge reaches the managed runtime host.
//
// A Table is populated once, before any load context exists, and is read-only
// afterwards. Hosts build tables from different sources:
//
//	nativehost.Open(path)      symbols exported by a runtime shim library
//	nativehost.Bind(ptrs)      raw function pointers resolved by the host
//	wasmhost.New(ctx, wasm)    a runtime compiled to WebAssembly
//	fake.New()                 an in-memory runtime for tests
//
// Every required slot must be non-nil before first use; Validate reports the
// unbound ones and MustBeBound panics on them. Optional slots (exception
// callback, managed objects) may stay nil; the bridge returns an unsupported
// error for operations that need them.
package functable
