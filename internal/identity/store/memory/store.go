package memory

import (
	"context"
	"slices"
	"sync"

	"namex/internal/identity/models"
	"namex/pkg/domain"
	"namex/pkg/platform/sentinel"
)

// InMemoryUserStore keys users by username.
type InMemoryUserStore struct {
	mu     sync.RWMutex
	users  map[string]*models.User
	nextID int64
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]*models.User)}
}

// Create assigns an id and returns ErrConflict when the username is taken.
func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return sentinel.ErrConflict
	}
	s.nextID++
	user.ID = domain.UserID(s.nextID)
	s.users[user.Username] = clone(user)
	return nil
}

func (s *InMemoryUserStore) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(u), nil
}

func (s *InMemoryUserStore) UpdateRoles(_ context.Context, id domain.UserID, roles []models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			u.Roles = slices.Clone(roles)
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func clone(u *models.User) *models.User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	return &c
}
