// Package service maps authenticated principals onto staff users, creating
// the user record the first time a username is seen.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"namex/internal/identity/models"
	"namex/pkg/domain"
	dErrors "namex/pkg/domain-errors"
	"namex/pkg/platform/sentinel"
)

// UserStore persists users keyed by username.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateRoles(ctx context.Context, id domain.UserID, roles []models.Role) error
}

const defaultCacheSize = 1024

// Resolver turns a username and its asserted roles into a persisted user.
// Resolved users are cached; a role change refreshes both cache and store.
type Resolver struct {
	store     UserStore
	cache     *lru.Cache[string, *models.User]
	cacheSize int
	logger    *slog.Logger
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithCacheSize(size int) Option {
	return func(r *Resolver) {
		if size > 0 {
			r.cacheSize = size
		}
	}
}

func New(store UserStore, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("user store is required")
	}
	r := &Resolver{store: store, cacheSize: defaultCacheSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	cache, err := lru.New[string, *models.User](r.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create user cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

// Resolve returns the user for username with the roles from the caller's
// token. Unrecognised roles are dropped.
func (r *Resolver) Resolve(ctx context.Context, username string, rawRoles []string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "username is required")
	}
	roles := models.ParseRoles(rawRoles)

	if cached, ok := r.cache.Get(username); ok && slices.Equal(cached.Roles, roles) {
		return copyUser(cached), nil
	}

	user, err := r.findOrCreate(ctx, username, roles)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(user.Roles, roles) {
		if err := r.store.UpdateRoles(ctx, user.ID, roles); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user roles")
		}
		r.logger.InfoContext(ctx, "user roles changed",
			"username", username,
			"roles", roles,
		)
		user.Roles = roles
	}
	r.cache.Add(username, copyUser(user))
	return user, nil
}

// ServiceAccount resolves the account that owns requests while the public
// flow holds them.
func (r *Resolver) ServiceAccount(ctx context.Context, username string) (*models.User, error) {
	return r.Resolve(ctx, username, []string{string(models.RoleSystem)})
}

func (r *Resolver) findOrCreate(ctx context.Context, username string, roles []models.Role) (*models.User, error) {
	user, err := r.store.FindByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	user = &models.User{Username: username, Roles: roles}
	err = r.store.Create(ctx, user)
	switch {
	case err == nil:
		r.logger.InfoContext(ctx, "user created", "username", username, "user_id", user.ID)
		return user, nil
	case errors.Is(err, sentinel.ErrConflict):
		// Lost a race with a concurrent first login.
		existing, findErr := r.store.FindByUsername(ctx, username)
		if findErr != nil {
			return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load user")
		}
		return existing, nil
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	return &c
}
