// Package bridge loads managed assemblies through a runtime function table
// and exposes their types and internal calls to Go.
//
// A Host wraps one functable.Table. Load contexts are created from the host
// and own the assemblies loaded into them:
//
//	host, err := bridge.New(table, nil)
//	if err != nil {
//	    return err
//	}
//	defer host.Close()
//
//	alc, err := host.CreateLoadContext("plugins")
//	if err != nil {
//	    return err
//	}
//	asm := alc.LoadAssembly("App.dll")
//	if !asm.Loaded() {
//	    return fmt.Errorf("load App.dll: %s", asm.LoadStatus())
//	}
//	program := asm.GetType("App.Program")
//
// # Failure Model
//
// A failed load is reported through Assembly.LoadStatus, and a missing type
// through the typecache.Null sentinel. Neither is an error.
//
// Misuse panics with an *errors.Error: registering a nil function pointer,
// registering calls on an assembly that failed to load, or loading into an
// unloaded context. Continuing past those would corrupt the record table the
// runtime reads later.
//
// # Type Identity
//
// Every type id the runtime reports is interned in a typecache.Cache, so the
// same id always yields the same *typecache.Type. Config.CacheScope selects
// one cache for the whole host or one per load context.
package bridge
