package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process ObjectStore used in tests and local
// development, where no S3-compatible endpoint is available.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data     []byte
	metadata Metadata
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) GetObject(_ context.Context, key string) ([]byte, Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, nil, fmt.Errorf("object %q not found", key)
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, obj.metadata, nil
}

func (s *MemoryStore) PutObject(_ context.Context, key string, data []byte, metadata Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[key] = memoryObject{data: stored, metadata: metadata}
	return nil
}
