package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"namex/internal/identity/models"
	"namex/internal/identity/store/memory"
	"namex/pkg/domain"
	dErrors "namex/pkg/domain-errors"
	"namex/pkg/platform/sentinel"
)

// countingStore records lookups so cache hits are observable.
type countingStore struct {
	*memory.InMemoryUserStore
	finds     int
	createErr error
	findErr   error
}

func (c *countingStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	c.finds++
	if c.findErr != nil {
		return nil, c.findErr
	}
	return c.InMemoryUserStore.FindByUsername(ctx, username)
}

func (c *countingStore) Create(ctx context.Context, user *models.User) error {
	if c.createErr != nil {
		return c.createErr
	}
	return c.InMemoryUserStore.Create(ctx, user)
}

type ResolverSuite struct {
	suite.Suite
	store    *countingStore
	resolver *Resolver
	ctx      context.Context
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &countingStore{InMemoryUserStore: memory.New()}
	var err error
	s.resolver, err = New(s.store, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), WithCacheSize(8))
	s.Require().NoError(err)
}

func (s *ResolverSuite) TestCreatesUserOnFirstSight() {
	user, err := s.resolver.Resolve(s.ctx, " idir/jdoe ", []string{"names_editor", "unknown"})
	s.Require().NoError(err)
	s.NotZero(user.ID)
	s.Equal("idir/jdoe", user.Username)
	s.Equal([]models.Role{models.RoleEditor}, user.Roles)

	stored, err := s.store.InMemoryUserStore.FindByUsername(s.ctx, "idir/jdoe")
	s.Require().NoError(err)
	s.Equal(user.ID, stored.ID)
}

func (s *ResolverSuite) TestCachesResolvedUsers() {
	first, err := s.resolver.Resolve(s.ctx, "idir/jdoe", []string{"names_editor"})
	s.Require().NoError(err)
	finds := s.store.finds

	second, err := s.resolver.Resolve(s.ctx, "idir/jdoe", []string{"names_editor"})
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Equal(finds, s.store.finds)

	second.Roles[0] = models.RoleSystem
	third, err := s.resolver.Resolve(s.ctx, "idir/jdoe", []string{"names_editor"})
	s.Require().NoError(err)
	s.Equal([]models.Role{models.RoleEditor}, third.Roles)
}

func (s *ResolverSuite) TestRoleChangeRefreshesStore() {
	_, err := s.resolver.Resolve(s.ctx, "idir/jdoe", []string{"names_editor"})
	s.Require().NoError(err)

	promoted, err := s.resolver.Resolve(s.ctx, "idir/jdoe", []string{"names_approver"})
	s.Require().NoError(err)
	s.True(promoted.IsApprover())

	stored, err := s.store.InMemoryUserStore.FindByUsername(s.ctx, "idir/jdoe")
	s.Require().NoError(err)
	s.Equal([]models.Role{models.RoleApprover}, stored.Roles)
}

func (s *ResolverSuite) TestConcurrentCreateFallsBackToLookup() {
	existing := &models.User{Username: "idir/jdoe", Roles: []models.Role{models.RoleEditor}}
	s.Require().NoError(s.store.InMemoryUserStore.Create(s.ctx, existing))
	s.store.createErr = sentinel.ErrConflict

	// First lookup misses, the create conflicts, the second lookup wins.
	s.store.findErr = sentinel.ErrNotFound
	resolver, err := New(&raceStore{countingStore: s.store})
	s.Require().NoError(err)

	user, err := resolver.Resolve(s.ctx, "idir/jdoe", []string{"names_editor"})
	s.Require().NoError(err)
	s.Equal(existing.ID, user.ID)
}

func (s *ResolverSuite) TestRejectsEmptyUsername() {
	_, err := s.resolver.Resolve(s.ctx, "  ", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ResolverSuite) TestStoreFailureIsInternal() {
	s.store.findErr = errors.New("connection reset")
	_, err := s.resolver.Resolve(s.ctx, "idir/jdoe", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ResolverSuite) TestServiceAccountHasSystemRole() {
	account, err := s.resolver.ServiceAccount(s.ctx, models.ServiceAccountUsername)
	s.Require().NoError(err)
	s.True(account.IsSystem())
	s.Equal(domain.UserID(1), account.ID)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	if err == nil {
		t.Fatal("expected error for nil store")
	}
}

// raceStore clears the injected lookup failure after the first miss.
type raceStore struct {
	*countingStore
}

func (r *raceStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := r.countingStore.FindByUsername(ctx, username)
	r.findErr = nil
	return u, err
}
