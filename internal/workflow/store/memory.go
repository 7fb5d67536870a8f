package store

import (
	"context"
	"strings"
	"sync"

	"disposisi/internal/workflow/models"
	id "disposisi/pkg/domain"
	"disposisi/pkg/platform/sentinel"
	pkgstrings "disposisi/pkg/platform/strings"
)

// InMemory is a process-local record store. Reads return deep copies.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.RecordID]*models.Record
	order   []id.RecordID
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.RecordID]*models.Record)}
}

// CreateIfLetterNumberAvailable inserts rec unless another record already
// uses its letter number (case-insensitive).
func (s *InMemory) CreateIfLetterNumberAvailable(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.letterNumberTakenLocked(rec.LetterNumber, rec.ID) {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.records[rec.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.records[rec.ID] = rec.Clone()
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, recordID id.RecordID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}

// List returns every record in creation order.
func (s *InMemory) List(_ context.Context) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Record, 0, len(s.order))
	for _, rid := range s.order {
		out = append(out, s.records[rid].Clone())
	}
	return out, nil
}

// FindFirstByLetterNumber returns the earliest-created record whose letter
// number contains query, ignoring case.
func (s *InMemory) FindFirstByLetterNumber(_ context.Context, query string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rid := range s.order {
		rec := s.records[rid]
		if pkgstrings.ContainsFold(rec.LetterNumber, query) {
			return rec.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Update persists everything but the timeline when the stored version equals
// expectedVersion, then appends the given entries to the stored timeline.
// Both happen under one lock.
func (s *InMemory) Update(_ context.Context, rec *models.Record, expectedVersion int64, appended ...models.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[rec.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	if s.letterNumberTakenLocked(rec.LetterNumber, rec.ID) {
		return sentinel.ErrAlreadyUsed
	}
	cp := rec.Clone()
	cp.Timeline = append(stored.Timeline, appended...)
	s.records[rec.ID] = cp
	return nil
}

func (s *InMemory) AppendTimeline(_ context.Context, recordID id.RecordID, entry models.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[recordID]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.Timeline = append(stored.Timeline, entry)
	return nil
}

func (s *InMemory) Delete(_ context.Context, recordID id.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[recordID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, recordID)
	for i, rid := range s.order {
		if rid == recordID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *InMemory) letterNumberTakenLocked(letterNumber string, except id.RecordID) bool {
	for rid, rec := range s.records {
		if rid != except && strings.EqualFold(rec.LetterNumber, letterNumber) {
			return true
		}
	}
	return false
}
