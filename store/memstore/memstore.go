// Package memstore keeps objects and preferences in process memory. It backs
// local development and the end-to-end tests.
package memstore

import (
	"context"
	"sync"

	"github.com/abearman/mindful-sub000/models"
	"github.com/abearman/mindful-sub000/store"
)

type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string][]byte)}
}

func (s *MemoryObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, ok := s.objects[key]
	if !ok {
		return nil, store.ErrObjectNotFound
	}
	return append([]byte(nil), body...), nil
}

func (s *MemoryObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = append([]byte(nil), body...)
	return nil
}

func (s *MemoryObjectStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}

// Keys lists stored object keys.
func (s *MemoryObjectStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

type MemoryPreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]models.StorageType
}

func NewPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{prefs: make(map[string]models.StorageType)}
}

func (s *MemoryPreferenceStore) GetStorageType(ctx context.Context, userId string) (models.StorageType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.prefs[userId]
	if !ok {
		return "", store.ErrItemNotFound
	}
	return t, nil
}

func (s *MemoryPreferenceStore) SetStorageType(ctx context.Context, userId string, storageType models.StorageType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs[userId] = storageType
	return nil
}

func (s *MemoryPreferenceStore) DeleteUser(ctx context.Context, userId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.prefs, userId)
	return nil
}
