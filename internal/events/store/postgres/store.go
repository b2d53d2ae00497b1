package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"namex/internal/events"
	"namex/pkg/domain"
	"namex/pkg/platform/sentinel"
)

// Store implements events.Store against the events table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event *events.Event) error {
	query := `
		INSERT INTO events (
			id, request_id, nr_num, user_id, username, action,
			state_cd, outcome, event_json, event_date, correlation_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	var data any
	if len(event.Data) > 0 {
		data = []byte(event.Data)
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(event.ID),
		int64(event.RequestID),
		string(event.NRNum),
		int64(event.UserID),
		event.Username,
		event.Action,
		event.StateCd,
		string(event.Outcome),
		data,
		event.EventDate,
		event.CorrelationID,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, request_id, nr_num, user_id, username, action,
		   state_cd, outcome, event_json, event_date, correlation_id
	FROM events
`

func (s *Store) ListByRequest(ctx context.Context, requestID domain.RequestID) ([]*events.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE request_id = $1 ORDER BY seq`, int64(requestID))
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id domain.EventID) (*events.Event, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, uuid.UUID(id))
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*events.Event, error) {
	var (
		e         events.Event
		id        uuid.UUID
		requestID int64
		nrNum     string
		userID    int64
		outcome   string
		data      []byte
	)
	err := row.Scan(&id, &requestID, &nrNum, &userID, &e.Username, &e.Action,
		&e.StateCd, &outcome, &data, &e.EventDate, &e.CorrelationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.ID = domain.EventID(id)
	e.RequestID = domain.RequestID(requestID)
	e.NRNum = domain.NRNumber(nrNum)
	e.UserID = domain.UserID(userID)
	e.Outcome = events.Outcome(outcome)
	e.Data = data
	return &e, nil
}
