package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"namex/pkg/domain"
	dErrors "namex/pkg/domain-errors"
	"namex/pkg/platform/sentinel"
	"namex/pkg/requestcontext"
)

// Store persists events. ListByRequest returns events oldest first.
type Store interface {
	Append(ctx context.Context, event *Event) error
	ListByRequest(ctx context.Context, requestID domain.RequestID) ([]*Event, error)
	Get(ctx context.Context, id domain.EventID) (*Event, error)
}

// Recorder writes events synchronously; a failed write is returned to the
// caller and logged.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func New(store Store, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("event store is required")
	}
	r := &Recorder{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record appends one event. The event date and correlation id come from the
// request context when not set.
func (r *Recorder) Record(ctx context.Context, event *Event) error {
	if event == nil || event.RequestID == 0 {
		return fmt.Errorf("event requires a request id")
	}
	if event.Action == "" {
		return fmt.Errorf("event requires an action")
	}
	start := time.Now()

	if event.ID == (domain.EventID{}) {
		event.ID = domain.NewEventID()
	}
	if event.EventDate.IsZero() {
		event.EventDate = requestcontext.Now(ctx)
	}
	if event.Outcome == "" {
		event.Outcome = OutcomeSuccess
	}
	if event.CorrelationID == "" {
		event.CorrelationID = requestcontext.RequestID(ctx)
	}

	if err := r.store.Append(ctx, event); err != nil {
		r.metrics.incPersistFailures()
		r.logger.ErrorContext(ctx, "failed to record event",
			"action", event.Action,
			"nr_num", event.NRNum,
			"user_id", event.UserID,
			"error", err,
		)
		return fmt.Errorf("record event: %w", err)
	}
	r.metrics.observePersist(time.Since(start).Seconds())
	r.metrics.incRecorded(event.Action, event.Outcome)
	return nil
}

// Get returns a single event.
func (r *Recorder) Get(ctx context.Context, id domain.EventID) (*Event, error) {
	e, err := r.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	return e, nil
}

// History builds the staff transaction history for a request.
func (r *Recorder) History(ctx context.Context, requestID domain.RequestID, nrNum domain.NRNumber) (*History, error) {
	list, err := r.store.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load events")
	}
	if len(list) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("No events for NR:%s not found", nrNum))
	}
	entries := BuildHistory(list)
	if len(entries) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("No valid events for %s found", nrNum))
	}
	return &History{Count: len(entries), Transactions: entries}, nil
}

// Marshal encodes an event payload, returning nil for values that cannot be
// encoded so a bad snapshot never blocks the trail.
func Marshal(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
