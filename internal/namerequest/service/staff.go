package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"namex/internal/events"
	idmodels "namex/internal/identity/models"
	"namex/internal/namerequest/models"
	"namex/internal/namerequest/policy"
	"namex/internal/namerequest/ports"
	"namex/internal/namerequest/validation"
	"namex/pkg/domain"
	dErrors "namex/pkg/domain-errors"
	"namex/pkg/requestcontext"
)

const resendDateLayout = "2006-01-02, 03:04 PM MST"

var decisionOptions = map[models.State]string{
	models.StateApproved:    ports.OptionApproved,
	models.StateConditional: ports.OptionConditional,
	models.StateRejected:    ports.OptionRejected,
}

// ChangeState is the examiner's state change. Taking a request into
// INPROGRESS demotes whatever the examiner already had in progress.
func (s *Service) ChangeState(ctx context.Context, actor *idmodels.User, nrNum domain.NRNumber, p *validation.StateChangePayload) (*Result, error) {
	if actor == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := validation.ValidateStateChange(p); err != nil {
		return nil, err
	}
	current, err := s.loadByNR(ctx, s.store, nrNum)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	ctx, span := startSpan(ctx, "namerequest.change_state",
		attribute.String(traceAttrNRNum, nrNum.String()),
		attribute.String(traceAttrRequestID, current.ID.String()),
	)
	defer span.End()

	var res *Result
	err = s.withLock(ctx, current.ID, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		var (
			nr      *models.NameRequest
			demoted *models.NameRequest
			from    models.State
		)
		err := s.tx.RunInTx(ctx, func(store Store) error {
			var err error
			nr, err = s.load(ctx, store, current.ID)
			if err != nil {
				return err
			}
			if err := requireHolder(nr, nil, actor); err != nil {
				return err
			}
			from = nr.StateCd
			state := models.State(p.State.ValueOr(string(nr.StateCd)))
			if !policy.IsTransitionValid(actor, from, state) {
				return dErrors.New(dErrors.CodeForbidden,
					fmt.Sprintf("not permitted to move a request from %s to %s", from, state))
			}
			if state == models.StateConsumed && from != models.StateConsumed {
				if err := consume(nr, p.CorpNum.ValueOr(""), now); err != nil {
					return err
				}
			}

			demoted, err = s.demoteActive(ctx, store, actor, nr, state, now)
			if err != nil {
				return err
			}
			var owner *idmodels.User
			if state == models.StateInProgress {
				owner = actor
			}
			// SYSTEM overrides a client checkout; the token must not outlive it.
			nr.ApplyCheckin()
			s.applyStateChange(nr, state, owner, now)

			if p.PreviousStateCd.Present() {
				nr.PreviousStateCd = nil
				if raw, ok := p.PreviousStateCd.Value(); ok && raw != "" {
					prev := models.State(raw)
					nr.PreviousStateCd = &prev
				}
			}
			for _, c := range p.Comments {
				appendComment(nr, c, actor, now)
			}
			if err := s.save(ctx, store, nr); err != nil {
				return err
			}
			nr, err = s.load(ctx, store, nr.ID)
			return err
		})
		if err != nil {
			if nr != nil {
				s.recordFailure(ctx, actor, nr, events.ActionPatch, err)
			}
			return err
		}

		if demoted != nil {
			s.logger.InfoContext(ctx, "demoted in-progress name request",
				"nr_num", demoted.NRNum,
				"state", demoted.StateCd,
				"user_id", actor.ID,
			)
			s.record(ctx, actor, demoted, events.ActionPatch, demoted)
		}
		s.record(ctx, actor, nr, events.ActionPatch, nr)
		if option, ok := decisionOptions[nr.StateCd]; ok && from != nr.StateCd {
			s.notify(ctx, actor, nr, option, nil)
		}

		nr.FillEntityAndAction()
		res = s.result(ctx, nr)
		res.Demoted = demoted
		return nil
	})
	markSpanResult(span, err)
	s.observe("change_state", start, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// EditName updates one name choice. Only the examiner holding the request in
// progress may do so.
func (s *Service) EditName(ctx context.Context, actor *idmodels.User, nrNum domain.NRNumber, choice int, p *validation.NamePatch) (*Result, error) {
	if actor == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := validation.ValidateNamePatch(p, choice); err != nil {
		return nil, err
	}
	current, err := s.loadByNR(ctx, s.store, nrNum)
	if err != nil {
		return nil, err
	}

	var res *Result
	err = s.withLock(ctx, current.ID, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		var nr *models.NameRequest
		err := s.tx.RunInTx(ctx, func(store Store) error {
			var err error
			nr, err = s.load(ctx, store, current.ID)
			if err != nil {
				return err
			}
			if err := requireHolder(nr, nil, actor); err != nil {
				return err
			}
			if nr.StateCd != models.StateInProgress || (nr.UserID != actor.ID && !actor.IsSystem()) {
				return dErrors.New(dErrors.CodeForbidden, "The name request must be in progress and assigned to you")
			}
			n := nr.NameChoice(choice)
			if n == nil {
				return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("name choice %d not found", choice))
			}
			applyNamePatch(n, *p)
			if p.Comment != nil {
				appendComment(nr, *p.Comment, actor, now)
			}
			nr.LastUpdate = now
			if err := s.save(ctx, store, nr); err != nil {
				return err
			}
			nr, err = s.load(ctx, store, nr.ID)
			return err
		})
		if err != nil {
			return err
		}

		n := nr.NameChoice(choice)
		s.record(ctx, actor, nr, events.ActionPatch, map[string]any{
			"choice": choice,
			"name":   n.Name,
			"state":  n.State,
		})
		res = s.result(ctx, nr)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AddComment appends an examiner comment.
func (s *Service) AddComment(ctx context.Context, actor *idmodels.User, nrNum domain.NRNumber, p *validation.CommentPost) (*models.Comment, error) {
	if actor == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := validation.ValidateComment(p); err != nil {
		return nil, err
	}
	current, err := s.loadByNR(ctx, s.store, nrNum)
	if err != nil {
		return nil, err
	}

	var added *models.Comment
	err = s.withLock(ctx, current.ID, func(ctx context.Context) error {
		var nr *models.NameRequest
		err := s.tx.RunInTx(ctx, func(store Store) error {
			var err error
			nr, err = s.load(ctx, store, current.ID)
			if err != nil {
				return err
			}
			if err := requireHolder(nr, nil, actor); err != nil {
				return err
			}
			nr.Comments = append(nr.Comments, newComment(p.Comment, actor, requestcontext.Now(ctx)))
			if err := s.save(ctx, store, nr); err != nil {
				return err
			}
			nr, err = s.load(ctx, store, nr.ID)
			return err
		})
		if err != nil {
			return err
		}
		added = nr.Comments[len(nr.Comments)-1]
		s.record(ctx, actor, nr, events.ActionPost, map[string]any{"comment": added.Comment})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// History returns the audit trail of a request, newest first.
func (s *Service) History(ctx context.Context, nrNum domain.NRNumber) (*events.History, error) {
	nr, err := s.loadByNR(ctx, s.store, nrNum)
	if err != nil {
		return nil, err
	}
	return s.events.History(ctx, nr.ID, nr.NRNum)
}

// GetEvent returns a single audit event.
func (s *Service) GetEvent(ctx context.Context, id domain.EventID) (*events.Event, error) {
	return s.events.Get(ctx, id)
}

// ResendNotification publishes the notification recorded by an earlier event
// again and records the resend.
func (s *Service) ResendNotification(ctx context.Context, actor *idmodels.User, id domain.EventID) (*events.Event, error) {
	if actor == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	original, err := s.events.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if len(original.Data) > 0 {
		if err := json.Unmarshal(original.Data, &data); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "event data is not an object")
		}
	}
	option, _ := data["option"].(string)
	if option == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "option not found in event data")
	}
	nr, err := s.load(ctx, s.store, original.RequestID)
	if err != nil {
		return nil, err
	}
	if s.notifier == nil {
		return nil, dErrors.New(dErrors.CodeExternal, "notification publisher is not configured")
	}
	if err := s.notifier.Publish(ctx, nr.NRNum, option, map[string]string{"eventId": id.String()}); err != nil {
		s.metrics.IncrementSideEffectFailure("notification")
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "failed to resend notification")
	}

	resent := map[string]any{
		"option":      option,
		"resentEvent": id.String(),
		"resend_date": requestcontext.Now(ctx).In(s.cfg.Expiry.Location).Format(resendDateLayout),
	}
	if email, ok := data["email"].(string); ok {
		resent["email"] = email
	}
	e := s.record(ctx, actor, nr, events.ActionNotification, resent)
	s.logger.InfoContext(ctx, "notification resent",
		"nr_num", nr.NRNum,
		"option", option,
		"event_id", id,
	)
	return e, nil
}
