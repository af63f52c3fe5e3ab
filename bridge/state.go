package bridge

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/clr-bridge/functable"
	"github.com/wippyai/clr-bridge/interop"
	"github.com/wippyai/clr-bridge/typecache"
)

// hostState is what a Host shares with its load contexts: which runtime
// contexts are live, the internal call storage pinned for each, and how many
// live contexts reference each host-cached type. It never points back at the
// Host, so it can be released by a cleanup once the Host is unreachable.
type hostState struct {
	table    *functable.Table
	cache    *typecache.Cache
	refs     map[functable.TypeID]int
	contexts map[functable.ContextID][]*interop.CallRegistry
	mu       sync.Mutex
}

func newHostState(table *functable.Table, cache *typecache.Cache) *hostState {
	return &hostState{
		table:    table,
		cache:    cache,
		refs:     make(map[functable.TypeID]int),
		contexts: make(map[functable.ContextID][]*interop.CallRegistry),
	}
}

func (s *hostState) addContext(id functable.ContextID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[id] = nil
}

func (s *hostState) pin(id functable.ContextID, calls *interop.CallRegistry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[id] = append(s.contexts[id], calls)
}

func (s *hostState) removeContext(id functable.ContextID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, id)
}

// intern returns the host-cached type for tid and counts seen's owner as a
// reference the first time it interns tid.
func (s *hostState) intern(seen map[functable.TypeID]struct{}, tid functable.TypeID) *typecache.Type {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := internType(s.table, s.cache, tid)
	if _, ok := seen[tid]; !ok {
		seen[tid] = struct{}{}
		s.refs[tid]++
	}
	return t
}

// evict drops one reference per id in seen and removes the types no live
// context references any more.
func (s *hostState) evict(seen map[functable.TypeID]struct{}) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dead []functable.TypeID
	for tid := range seen {
		if s.refs[tid]--; s.refs[tid] <= 0 {
			delete(s.refs, tid)
			dead = append(dead, tid)
		}
	}
	return s.cache.Remove(dead...)
}

// abandon runs when a Host is collected without Close. It unpins every
// registry still held and unloads the contexts the runtime still has.
func (s *hostState) abandon() {
	s.mu.Lock()
	contexts := s.contexts
	s.contexts = make(map[functable.ContextID][]*interop.CallRegistry)
	s.mu.Unlock()

	if len(contexts) == 0 {
		return
	}
	for id, registries := range contexts {
		for _, r := range registries {
			r.Release()
		}
		s.table.UnloadAssemblyLoadContext(id)
	}
	Logger().Warn("host collected without Close", zap.Int("contexts", len(contexts)))
}

// internType returns the canonical instance for tid, asking the runtime for
// the name only when the id is not cached yet.
func internType(table *functable.Table, cache *typecache.Cache, tid functable.TypeID) *typecache.Type {
	if cached := cache.GetTypeByID(tid); cached != nil {
		return cached
	}
	name := table.String(table.GetTypeName(tid))
	return cache.CacheType(typecache.NewType(tid, name))
}
