package interop

import (
	"runtime"
)

// NameStore owns encoded strings that must outlive the call that handed
// them to the runtime. Every stored buffer stays at a fixed, pinned address
// until Release.
type NameStore struct {
	names   []string
	bufs    [][]byte
	pinner  runtime.Pinner
	charset CharSet
}

// NewNameStore creates an empty store encoding with cs.
func NewNameStore(cs CharSet) *NameStore {
	return &NameStore{charset: cs}
}

// CharSet returns the store's encoding.
func (s *NameStore) CharSet() CharSet {
	return s.charset
}

// Store encodes name and returns a pointer to the durable copy.
func (s *NameStore) Store(name string) (*byte, error) {
	buf, err := s.charset.Encode(name)
	if err != nil {
		return nil, err
	}
	p := &buf[0]
	s.pinner.Pin(p)
	s.bufs = append(s.bufs, buf)
	s.names = append(s.names, name)
	return p, nil
}

// Len returns the number of stored names.
func (s *NameStore) Len() int {
	return len(s.bufs)
}

// Names returns the stored names in insertion order.
func (s *NameStore) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Release unpins and forgets every stored buffer. Pointers returned by
// Store are invalid afterwards.
func (s *NameStore) Release() {
	s.pinner.Unpin()
	s.bufs = nil
	s.names = nil
}
