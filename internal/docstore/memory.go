package docstore

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in a map. It is used in tests and
// single-process demos.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[Ref][]byte

	// Gets and Puts count calls so tests can observe reload behavior.
	Gets int
	Puts int

	// Err, when set, is returned from every call.
	Err error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[Ref][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, ref Ref) ([]byte, error) {
	s.mu.Lock()
	s.Gets++
	err := s.Err
	doc, ok := s.docs[ref]
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, ref Ref, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Puts++
	if s.Err != nil {
		return s.Err
	}
	cp := make([]byte, len(doc))
	copy(cp, doc)
	s.docs[ref] = cp
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Raw returns the stored bytes without counting a Get.
func (s *MemoryStore) Raw(ref Ref) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[ref]
	return doc, ok
}

var _ Store = (*MemoryStore)(nil)
