package audit

import (
	"context"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore is the in-process store used in development mode and tests.
type MemStore struct {
	mu     sync.Mutex
	events []*Event
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Append(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

func (s *MemStore) ListRecent(ctx context.Context, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]*Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		copied := *s.events[i]
		out = append(out, &copied)
	}
	return out, nil
}
