package audit

import (
	"context"
	"errors"
	"sync"
)

// ErrMissingID is returned when a record has no decision id.
var ErrMissingID = errors.New("audit: record without decision id")

// MemoryStore keeps records in memory, in insertion order.
type MemoryStore struct {
	mu   sync.RWMutex
	recs []Record
	ids  map[string]struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]struct{})}
}

func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	if rec.DecisionID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[rec.DecisionID]; ok {
		return nil
	}
	s.ids[rec.DecisionID] = struct{}{}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, q Query) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Record
	for _, r := range s.recs {
		if q.Match(r) {
			res = append(res, r)
		}
	}
	return res, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

func (s *MemoryStore) Close() error { return nil }
