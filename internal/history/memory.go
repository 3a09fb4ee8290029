package history

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity bounds a MemoryStore created with a zero capacity.
const DefaultMemoryCapacity = 100

// MemoryStore keeps the most recent reports in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	reports  []Report
	capacity int
}

// NewMemoryStore keeps at most capacity reports, dropping the oldest.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

func (s *MemoryStore) Save(_ context.Context, r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	if over := len(s.reports) - s.capacity; over > 0 {
		s.reports = append([]Report(nil), s.reports[over:]...)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, runID string) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.reports) - 1; i >= 0; i-- {
		if s.reports[i].RunID == runID {
			return s.reports[i], nil
		}
	}
	return Report{}, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Report, 0, len(s.reports))
	for i := len(s.reports) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.reports[i])
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
