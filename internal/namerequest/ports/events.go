package ports

//go:generate mockgen -source=events.go -destination=mocks/events_mocks.go -package=mocks

import (
	"context"

	"namex/internal/events"
	"namex/pkg/domain"
)

// EventRecorder appends to and reads from the audit trail.
type EventRecorder interface {
	Record(ctx context.Context, event *events.Event) error
	Get(ctx context.Context, id domain.EventID) (*events.Event, error)
	History(ctx context.Context, requestID domain.RequestID, nrNum domain.NRNumber) (*events.History, error)
}
