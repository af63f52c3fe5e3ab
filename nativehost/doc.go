// Package nativehost binds a functable.Table to native entry points
// without cgo.
//
// A runtime host shim exports one C function per table slot. Open loads the
// shim by path and resolves its clr_* symbols; Bind accepts raw function
// pointers obtained some other way, such as from the runtime's delegate
// loader. Either way every slot becomes a typed Go function calling through
// purego.
//
//	lib, err := nativehost.Open("libclrhost.so")
//	if err != nil {
//	    return err
//	}
//	defer lib.Close()
//
//	table, err := lib.Table(interop.NativeCharSet())
//	if err != nil {
//	    return err
//	}
//	host, err := bridge.New(table, nil)
//
// Go functions are exposed to managed code with NewCallback and registered
// through bridge.Assembly.AddInternalCall.
package nativehost
