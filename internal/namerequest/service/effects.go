package service

import (
	"context"
	"slices"

	"namex/internal/events"
	idmodels "namex/internal/identity/models"
	"namex/internal/namerequest/models"
	dErrors "namex/pkg/domain-errors"
)

// Entity types whose requests are indexed as possible conflicts.
var searchEntityTypes = []string{"CR", "UL", "BC", "CP", "PA", "XCR", "XUL", "XCP", "CC", "FI"}

// syncSearch removes a cancelled request from the conflicts index. Failures
// are logged; the state change already committed stands.
func (s *Service) syncSearch(ctx context.Context, nr *models.NameRequest) {
	if s.search == nil {
		return
	}
	entity := nr.EntityTypeCd
	if entity == "" {
		if e, _, ok := models.MapRequestType(nr.RequestTypeCd); ok {
			entity = e
		}
	}
	if !slices.Contains(searchEntityTypes, entity) {
		return
	}
	if err := s.search.DeleteDocument(ctx, s.cfg.SolrCore, nr.NRNum); err != nil {
		s.metrics.IncrementSideEffectFailure("search")
		s.logger.WarnContext(ctx, "failed to remove name request from search index",
			"nr_num", nr.NRNum,
			"core", s.cfg.SolrCore,
			"error", err,
		)
	}
}

// notify publishes an email notification and, once accepted, records it on
// the request's trail so it can be resent later.
func (s *Service) notify(ctx context.Context, actor *idmodels.User, nr *models.NameRequest, option string, detail map[string]string) {
	if s.notifier == nil {
		s.logger.DebugContext(ctx, "notification publisher not configured", "nr_num", nr.NRNum, "option", option)
		return
	}
	if err := s.notifier.Publish(ctx, nr.NRNum, option, detail); err != nil {
		s.metrics.IncrementSideEffectFailure("notification")
		s.logger.ErrorContext(ctx, "failed to publish notification",
			"nr_num", nr.NRNum,
			"option", option,
			"error", err,
		)
		return
	}
	data := map[string]any{"option": option}
	if nr.Applicant != nil && nr.Applicant.EmailAddress != "" {
		data["email"] = nr.Applicant.EmailAddress
	}
	for k, v := range detail {
		data[k] = v
	}
	s.record(ctx, actor, nr, events.ActionNotification, data)
}

// record appends a success event. The operation it describes has already
// committed, so a failed append is logged rather than returned.
func (s *Service) record(ctx context.Context, actor *idmodels.User, nr *models.NameRequest, action string, data any) *events.Event {
	e := newEvent(actor, nr, action, data)
	if err := s.events.Record(ctx, e); err != nil {
		s.metrics.IncrementSideEffectFailure("event")
		s.logger.ErrorContext(ctx, "failed to record event",
			"nr_num", nr.NRNum,
			"action", action,
			"error", err,
		)
	}
	return e
}

// recordFailure leaves a failure event for an operation that was rejected
// after the request was loaded.
func (s *Service) recordFailure(ctx context.Context, actor *idmodels.User, nr *models.NameRequest, action string, cause error) {
	if nr == nil || cause == nil {
		return
	}
	data := map[string]any{"error": string(dErrors.CodeOf(cause))}
	if de, ok := dErrors.As(cause); ok {
		data["message"] = de.Message
	}
	e := newEvent(actor, nr, action, data)
	e.Outcome = events.OutcomeFailure
	if err := s.events.Record(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "failed to record failure event", "nr_num", nr.NRNum, "action", action, "error", err)
	}
}

func newEvent(actor *idmodels.User, nr *models.NameRequest, action string, data any) *events.Event {
	e := &events.Event{
		RequestID: nr.ID,
		NRNum:     nr.NRNum,
		Action:    action,
		StateCd:   string(nr.StateCd),
		Data:      events.Marshal(data),
	}
	if actor != nil {
		e.UserID = actor.ID
		e.Username = actor.Username
	}
	return e
}
