// Package wasmhost runs a managed runtime compiled to WebAssembly and
// exposes it as a functable.Table.
//
// The guest module must export its linear memory as "memory", an allocator
// "clr_alloc(size i32) -> i32", and one function per required table slot:
//
//	clr_load_managed_assembly(ctx i32, path i32, len i32) -> i32
//	clr_get_last_load_status() -> i32
//	clr_get_assembly_name(id i32) -> i64
//	clr_get_assembly_types(id i32, buf i32, count i32)
//	clr_get_type_name(id i64) -> i64
//	clr_set_internal_calls(records i32, count i32)
//	clr_create_assembly_load_context(name i32, len i32) -> i32
//	clr_unload_assembly_load_context(ctx i32)
//
// Strings are passed to the guest as UTF-8 (pointer, length) pairs and
// returned packed into an i64 as ptr<<32 | len. Type ids are 8 bytes wide.
// clr_get_assembly_types receives buf == 0 to ask for the count, which it
// stores at count; otherwise it fills buf with up to *count ids and stores
// the number written. Internal call records are 16 bytes:
// { name u32, len u32, fn u64 }.
//
// An optional "clr_free(ptr i32, size i32)" export reclaims scratch buffers.
//
// Guest calls are serialized. A trap during a load is reported as
// LoadUnknownError; other traps are logged and yield zero results.
package wasmhost
