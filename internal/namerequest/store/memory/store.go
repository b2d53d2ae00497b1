// Package memory keeps name requests and payments in process. It backs the
// service when no database is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"namex/internal/namerequest/models"
	"namex/pkg/domain"
	"namex/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu          sync.RWMutex
	requests    map[domain.RequestID]*models.NameRequest
	byNR        map[domain.NRNumber]domain.RequestID
	payments    map[domain.RequestID][]*models.Payment
	nextID      int64
	nextChildID int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests: make(map[domain.RequestID]*models.NameRequest),
		byNR:     make(map[domain.NRNumber]domain.RequestID),
		payments: make(map[domain.RequestID][]*models.Payment),
	}
}

// Create inserts a new request, assigning an id when it has none.
func (s *InMemoryStore) Create(_ context.Context, nr *models.NameRequest) error {
	if nr == nil {
		return fmt.Errorf("name request is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byNR[nr.NRNum]; ok {
		return sentinel.ErrConflict
	}
	if nr.ID == 0 {
		s.nextID++
		nr.ID = domain.RequestID(s.nextID)
	} else if int64(nr.ID) > s.nextID {
		s.nextID = int64(nr.ID)
	}
	s.assignChildIDs(nr)
	s.requests[nr.ID] = nr.Clone()
	s.byNR[nr.NRNum] = nr.ID
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, id domain.RequestID) (*models.NameRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nr, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return nr.Clone(), nil
}

func (s *InMemoryStore) GetByNR(_ context.Context, nrNum domain.NRNumber) (*models.NameRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNR[nrNum]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.requests[id].Clone(), nil
}

// FindInProgressForUser returns the most recently updated request the user
// holds in progress.
func (s *InMemoryStore) FindInProgressForUser(_ context.Context, userID domain.UserID) (*models.NameRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.NameRequest
	for _, nr := range s.requests {
		if nr.UserID != userID || nr.StateCd != models.StateInProgress {
			continue
		}
		if found == nil || nr.LastUpdate.After(found.LastUpdate) {
			found = nr
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found.Clone(), nil
}

// Save replaces the stored aggregate. New comments and names get ids.
func (s *InMemoryStore) Save(_ context.Context, nr *models.NameRequest) error {
	if nr == nil {
		return fmt.Errorf("name request is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.requests[nr.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.NRNum != nr.NRNum {
		delete(s.byNR, existing.NRNum)
		s.byNR[nr.NRNum] = nr.ID
	}
	s.assignChildIDs(nr)
	s.requests[nr.ID] = nr.Clone()
	return nil
}

func (s *InMemoryStore) DeleteName(_ context.Context, id domain.RequestID, choice int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nr, ok := s.requests[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	nr.Names = slices.DeleteFunc(nr.Names, func(n *models.NameChoice) bool { return n.Choice == choice })
	return nil
}

// CompareAndSetCheckout swaps the checkout token if the stored one still
// equals expected.
func (s *InMemoryStore) CompareAndSetCheckout(_ context.Context, id domain.RequestID, expected, token *string, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nr, ok := s.requests[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !nr.HeldBy(expected) {
		return sentinel.ErrConflict
	}
	nr.CheckedOutBy = clonePtr(token)
	nr.CheckedOutDt = clonePtr(at)
	return nil
}

// AddPayment links a payment to a request.
func (s *InMemoryStore) AddPayment(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[p.RequestID]; !ok {
		return sentinel.ErrNotFound
	}
	s.nextChildID++
	p.ID = s.nextChildID
	c := *p
	s.payments[p.RequestID] = append(s.payments[p.RequestID], &c)
	return nil
}

func (s *InMemoryStore) ListPayments(_ context.Context, id domain.RequestID) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.payments[id]
	out := make([]*models.Payment, len(list))
	for i, p := range list {
		c := *p
		out[i] = &c
	}
	return out, nil
}

func (s *InMemoryStore) SavePayment(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payments[p.RequestID] {
		if existing.ID == p.ID {
			*existing = *p
			return nil
		}
	}
	return sentinel.ErrNotFound
}

// assignChildIDs gives new names and comments an id. Callers hold mu.
func (s *InMemoryStore) assignChildIDs(nr *models.NameRequest) {
	for _, n := range nr.Names {
		if n.ID == 0 {
			s.nextChildID++
			n.ID = s.nextChildID
		}
	}
	for _, c := range nr.Comments {
		if c.ID == 0 {
			s.nextChildID++
			c.ID = s.nextChildID
		}
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
