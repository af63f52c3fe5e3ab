package typecache

import (
	"sync"

	"github.com/wippyai/clr-bridge/functable"
)

// Cache owns canonical Type instances keyed by runtime id, with a secondary
// index by qualified name.
type Cache struct {
	byID   map[functable.TypeID]*Type
	byName map[string]*Type
	order  []*Type
	mu     sync.RWMutex
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		byID:   make(map[functable.TypeID]*Type),
		byName: make(map[string]*Type),
	}
}

// CacheType returns the canonical instance for t's id, inserting t if the id
// is new. Repeated calls with the same id return the same pointer. A zero id
// yields the Null sentinel.
func (c *Cache) CacheType(t Type) *Type {
	if t.id == 0 {
		return nullType
	}

	c.mu.RLock()
	existing, ok := c.byID[t.id]
	c.mu.RUnlock()
	if ok {
		return existing
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byID[t.id]; ok {
		return existing
	}
	entry := &Type{id: t.id, name: t.name}
	c.byID[t.id] = entry
	c.order = append(c.order, entry)
	// First type cached under a name owns the name index.
	if _, taken := c.byName[t.name]; !taken && t.name != "" {
		c.byName[t.name] = entry
	}
	return entry
}

// GetTypeByName returns the cached type with exactly this name, or nil.
func (c *Cache) GetTypeByName(name string) *Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byName[name]
}

// GetTypeByID returns the cached type for id, or nil.
func (c *Cache) GetTypeByID(id functable.TypeID) *Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byID[id]
}

// Lookup is GetTypeByName returning Null instead of nil.
func (c *Cache) Lookup(name string) *Type {
	if t := c.GetTypeByName(name); t != nil {
		return t
	}
	return nullType
}

// Len returns the number of cached types.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Types returns every cached type in insertion order.
func (c *Cache) Types() []*Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Type, len(c.order))
	copy(out, c.order)
	return out
}

// Remove drops the entries for ids and returns how many were cached. A name
// owned by a removed entry passes to the earliest surviving entry with the
// same name, or is freed for the next CacheType.
func (c *Cache) Remove(ids ...functable.TypeID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	var orphaned []string
	for _, id := range ids {
		entry, ok := c.byID[id]
		if !ok {
			continue
		}
		delete(c.byID, id)
		if c.byName[entry.name] == entry {
			delete(c.byName, entry.name)
			orphaned = append(orphaned, entry.name)
		}
		removed++
	}
	if removed == 0 {
		return 0
	}

	kept := c.order[:0]
	for _, t := range c.order {
		if c.byID[t.id] == t {
			kept = append(kept, t)
		}
	}
	clear(c.order[len(kept):])
	c.order = kept

	for _, name := range orphaned {
		for _, t := range c.order {
			if t.name == name {
				c.byName[name] = t
				break
			}
		}
	}
	return removed
}

// Clear drops every entry. Types handed out earlier stay valid as values but
// are no longer canonical.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = make(map[functable.TypeID]*Type)
	c.byName = make(map[string]*Type)
	c.order = nil
}
