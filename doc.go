// Package clrbridge lets a Go process load and interrogate assemblies of a
// separately hosted managed runtime, and lets managed code call back into Go.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	clrbridge/           Root package (documentation only)
//	├── bridge/          Host, load contexts, assemblies, managed objects
//	├── typecache/       Interned type handles and the null-type sentinel
//	├── functable/       The runtime entry point table and its ids
//	│   └── fake/        In-memory runtime for tests
//	├── interop/         String encodings, durable names, call records, parameters
//	├── nativehost/      Table bound to a native shim through purego
//	├── wasmhost/        Table backed by a WebAssembly guest on wazero
//	├── errors/          Structured error types
//	└── cmd/clr-inspect/ Command line inspector
//
// # Quick Start
//
// Bind a runtime, create a load context and load an assembly:
//
//	lib, err := nativehost.Open("libclrhost.so")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer lib.Close()
//
//	table, err := lib.Table(interop.NativeCharSet())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	host, err := bridge.New(table, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer host.Close()
//
//	alc, _ := host.CreateLoadContext("app")
//	asm := alc.LoadAssembly("App.dll")
//	if !asm.Loaded() {
//	    log.Fatalf("load failed: %s", asm.LoadStatus())
//	}
//	for _, t := range asm.GetTypes() {
//	    fmt.Println(t.Name())
//	}
//
// # Internal Calls
//
// Expose Go functions to managed code under "{Class}+{Member}, {Assembly}":
//
//	logFn := nativehost.NewCallback(func(level int32) uintptr { ...; return 0 })
//	if err := asm.AddInternalCall("App.Native", "Log", logFn); err != nil {
//	    log.Fatal(err)
//	}
//	asm.UploadInternalCalls()
//
// # Type Identity
//
// A type id reported by the runtime always maps to the same *typecache.Type.
// Lookups that miss return typecache.Null() rather than an error.
//
// # Error Handling
//
// All errors use the structured errors package:
//
//	var missing *errors.MissingSlotsError
//	if stderrors.As(err, &missing) {
//	    fmt.Println(missing) // grouped list of unbound entry points
//	}
package clrbridge
