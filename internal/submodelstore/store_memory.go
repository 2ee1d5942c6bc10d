package submodelstore

import (
	"context"
	"sync"

	"twinhub/pkg/platform/sentinel"
)

// MemoryStore keeps payloads in process memory. Used in tests and in
// deployments without an external submodel service.
type MemoryStore struct {
	mu       sync.RWMutex
	payloads map[string]Payload
}

func NewMemory() *MemoryStore {
	return &MemoryStore{payloads: make(map[string]Payload)}
}

func (s *MemoryStore) Put(_ context.Context, key string, payload Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(Payload, len(payload))
	copy(cp, payload)
	s.payloads[key] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.payloads[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return payload, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payloads[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.payloads, key)
	return nil
}
