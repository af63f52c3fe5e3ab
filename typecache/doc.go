// Package typecache interns managed type metadata so every runtime-issued
// type id maps to exactly one *Type for the lifetime of the cache.
//
// Downstream code compares types by pointer identity:
//
//	a := cache.CacheType(typecache.NewType(id, "App.Program"))
//	b := cache.CacheType(typecache.NewType(id, "App.Program"))
//	a == b // always true
//
// Name lookups are exact-match. GetTypeByName returns nil on a miss and
// Lookup returns the Null sentinel, so callers can branch without an
// error path for the routine "type not present" case.
package typecache
