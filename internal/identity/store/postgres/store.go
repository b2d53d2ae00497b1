// Package postgres persists staff users in the users table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"namex/internal/identity/models"
	"namex/pkg/domain"
	"namex/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

type PostgresUserStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (s *PostgresUserStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, first_name, last_name, roles)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query, user.Username, user.FirstName, user.LastName, pq.Array(roleStrings(user.Roles))).
		Scan(&id, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = domain.UserID(id)
	return nil
}

func (s *PostgresUserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, first_name, last_name, roles, created_at FROM users WHERE username = $1`
	var (
		u     models.User
		id    int64
		roles []string
	)
	err := s.db.QueryRowContext(ctx, query, username).
		Scan(&id, &u.Username, &u.FirstName, &u.LastName, pq.Array(&roles), &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	u.ID = domain.UserID(id)
	u.Roles = models.ParseRoles(roles)
	return &u, nil
}

func (s *PostgresUserStore) UpdateRoles(ctx context.Context, id domain.UserID, roles []models.Role) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET roles = $2 WHERE id = $1`, int64(id), pq.Array(roleStrings(roles)))
	if err != nil {
		return fmt.Errorf("update user roles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user roles: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func roleStrings(roles []models.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
