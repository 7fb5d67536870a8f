package store

import (
	"context"
	"sync"

	"disposisi/internal/attachment/models"
	"disposisi/pkg/platform/sentinel"
)

// InMemory keeps blobs in process memory.
type InMemory struct {
	mu    sync.RWMutex
	blobs map[string]models.Blob
}

func NewInMemory() *InMemory {
	return &InMemory{blobs: make(map[string]models.Blob)}
}

// Put stores a copy of blob. Re-uploading the same content keeps the first name.
func (s *InMemory) Put(_ context.Context, locator string, blob models.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[locator]; exists {
		return nil
	}
	blob.Data = append([]byte(nil), blob.Data...)
	s.blobs[locator] = blob
	return nil
}

func (s *InMemory) Get(_ context.Context, locator string) (*models.Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[locator]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	blob.Data = append([]byte(nil), blob.Data...)
	return &blob, nil
}
