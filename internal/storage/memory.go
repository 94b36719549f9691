package storage

import (
	"context"
	"sync"
	"time"

	"triagebot/internal/models"
)

// maxRecords bounds the in-memory audit log and its dedup set. Oldest
// entries are evicted first.
const maxRecords = 10000

type MemoryStorage struct {
	mu      sync.RWMutex
	records []*models.ClassificationRecord
	seen    map[string]struct{}
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		seen: make(map[string]struct{}),
	}
}

func (s *MemoryStorage) SaveClassification(_ context.Context, rec *models.ClassificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.records = append(s.records, &stored)
	s.seen[stored.MessageID] = struct{}{}

	if len(s.records) > maxRecords {
		evicted := s.records[0]
		s.records = s.records[1:]
		delete(s.seen, evicted.MessageID)
	}
	return nil
}

func (s *MemoryStorage) Seen(_ context.Context, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.seen[messageID]
	return ok, nil
}

func (s *MemoryStorage) RecentClassifications(_ context.Context, limit int) ([]*models.ClassificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}

	// Newest first.
	out := make([]*models.ClassificationRecord, 0, limit)
	for i := len(s.records) - 1; i >= len(s.records)-limit; i-- {
		copied := *s.records[i]
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
