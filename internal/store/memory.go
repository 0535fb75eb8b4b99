package store

import (
	"context"
	"sync"

	"social-client/internal/models"
)

// MemoryStore keeps markers in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	marks map[Key]models.ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{marks: make(map[Key]models.ID)}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (models.ID, bool, error) {
	if !key.valid() {
		return "", false, errInvalidKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.marks[key]
	return id, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key Key, messageID models.ID) error {
	if !key.valid() {
		return errInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[key] = messageID
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
