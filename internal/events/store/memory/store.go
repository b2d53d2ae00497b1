package memory

import (
	"context"
	"slices"
	"sync"

	"namex/internal/events"
	"namex/pkg/domain"
	"namex/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	byRequest map[domain.RequestID][]*events.Event
	byID      map[domain.EventID]*events.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byRequest: make(map[domain.RequestID][]*events.Event),
		byID:      make(map[domain.EventID]*events.Event),
	}
}

func (s *InMemoryStore) Append(_ context.Context, event *events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := copyEvent(event)
	s.byRequest[c.RequestID] = append(s.byRequest[c.RequestID], c)
	s.byID[c.ID] = c
	return nil
}

func (s *InMemoryStore) ListByRequest(_ context.Context, requestID domain.RequestID) ([]*events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byRequest[requestID]
	out := make([]*events.Event, len(list))
	for i, e := range list {
		out[i] = copyEvent(e)
	}
	return out, nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.EventID) (*events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyEvent(e), nil
}

// Clear drops every event.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byRequest = make(map[domain.RequestID][]*events.Event)
	s.byID = make(map[domain.EventID]*events.Event)
}

func copyEvent(e *events.Event) *events.Event {
	c := *e
	c.Data = slices.Clone(e.Data)
	return &c
}
