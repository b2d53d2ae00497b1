package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"namex/internal/events"
	idmodels "namex/internal/identity/models"
	"namex/internal/namerequest/models"
	"namex/internal/namerequest/policy"
	"namex/internal/namerequest/ports"
	"namex/internal/namerequest/validation"
	"namex/pkg/domain"
	dErrors "namex/pkg/domain-errors"
	"namex/pkg/platform/sentinel"
	"namex/pkg/requestcontext"
)

// patchInput is what a patch handler receives besides the loaded request.
type patchInput struct {
	payload *validation.PatchPayload
	// token is the checkout token the caller claims to hold.
	token *string
}

var patchEvents = map[models.PatchAction]string{
	models.PatchCheckout:      events.ActionCheckout,
	models.PatchCheckin:       events.ActionCheckin,
	models.PatchEdit:          events.ActionEdit,
	models.PatchCancel:        events.ActionCancel,
	models.PatchResend:        events.ActionResend,
	models.PatchRequestRefund: events.ActionRequestRefund,
}

const processingMessage = "The request is currently being processed."

// refundEvent is the request snapshot with the refund outcome alongside.
type refundEvent struct {
	*models.NameRequest
	Refund *RefundResult `json:"refund"`
}

// Patch validates the payload against the stored request and dispatches the action.
func (s *Service) Patch(ctx context.Context, actor *idmodels.User, id domain.RequestID, rawAction string, p *validation.PatchPayload) (*Result, error) {
	if actor == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	start := time.Now()
	ctx, span := startSpan(ctx, "namerequest.patch",
		attribute.String(traceAttrAction, rawAction),
		attribute.String(traceAttrRequestID, id.String()),
	)
	defer span.End()

	var res *Result
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		nr, err := s.load(ctx, s.store, id)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.String(traceAttrNRNum, nr.NRNum.String()))
		action, err := models.ParsePatchAction(rawAction)
		if err != nil {
			s.recordFailure(ctx, actor, nr, events.ActionPatch, err)
			return err
		}
		if err := validation.ValidatePatch(p, nr.StateCd, rawAction); err != nil {
			s.recordFailure(ctx, actor, nr, patchEvents[action], err)
			return err
		}
		handler, ok := s.dispatch[action]
		if !ok {
			return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("no handler for %s", action))
		}
		if p == nil {
			p = &validation.PatchPayload{}
		}
		res, err = handler(ctx, actor, nr, &patchInput{payload: p, token: p.CheckedOutBy.Ptr()})
		if err != nil {
			s.recordFailure(ctx, actor, nr, patchEvents[action], err)
		}
		return err
	})
	markSpanResult(span, err)
	s.observe("patch_"+rawAction, start, err)
	if err != nil {
		s.logger.WarnContext(ctx, "name request patch failed",
			"request_id", id,
			"action", rawAction,
			"error", err,
		)
		return nil, err
	}
	return res, nil
}

// requireHolder rejects callers that do not hold the checkout on a checked-out request.
func requireHolder(nr *models.NameRequest, token *string, actor *idmodels.User) error {
	if !nr.IsCheckedOut() || actor.IsSystem() {
		return nil
	}
	if !nr.HeldBy(token) {
		return dErrors.New(dErrors.CodeLocked, processingMessage)
	}
	return nil
}

func (s *Service) save(ctx context.Context, store Store, nr *models.NameRequest) error {
	if err := store.Save(ctx, nr); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save name request")
	}
	return nil
}

// swapCheckout writes the checkout token only if the stored one is still expected.
func swapCheckout(ctx context.Context, store Store, nr *models.NameRequest, expected, token *string, at *time.Time) error {
	if err := store.CompareAndSetCheckout(ctx, nr.ID, expected, token, at); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeLocked, processingMessage)
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "name request not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update checkout")
	}
	return nil
}

func (s *Service) checkout(ctx context.Context, actor *idmodels.User, nr *models.NameRequest, in *patchInput) (*Result, error) {
	if err := policy.CheckCheckout(nr, in.token); err != nil {
		s.metrics.IncrementLockConflict()
		return nil, err
	}
	now := requestcontext.Now(ctx)
	token := uuid.NewString()
	expected := nr.CheckedOutBy

	err := s.tx.RunInTx(ctx, func(store Store) error {
		if err := swapCheckout(ctx, store, nr, expected, &token, &now); err != nil {
			return err
		}
		nr.ApplyCheckout(token, now)
		s.applyStateChange(nr, models.StateInProgress, s.cfg.ServiceAccount, now)
		return s.save(ctx, store, nr)
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeLocked) {
			s.metrics.IncrementLockConflict()
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "name request checked out", "nr_num", nr.NRNum, "user_id", actor.ID)
	s.record(ctx, actor, nr, events.ActionCheckout, map[string]any{})
	res := s.result(ctx, nr)
	res.Minimal = true
	return res, nil
}

func (s *Service) checkin(ctx context.Context, actor *idmodels.User, nr *models.NameRequest, in *patchInput) (*Result, error) {
	if err := requireHolder(nr, in.token, actor); err != nil {
		s.metrics.IncrementLockConflict()
		return nil, err
	}
	now := requestcontext.Now(ctx)
	expected := nr.CheckedOutBy

	err := s.tx.RunInTx(ctx, func(store Store) error {
		if err := swapCheckout(ctx, store, nr, expected, nil, nil); err != nil {
			return err
		}
		nr.ApplyCheckin()
		s.applyStateChange(nr, models.StateDraft, nil, now)
		return s.save(ctx, store, nr)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "name request checked in", "nr_num", nr.NRNum, "user_id", actor.ID)
	s.record(ctx, actor, nr, events.ActionCheckin, map[string]any{})
	res := s.result(ctx, nr)
	res.Minimal = true
	return res, nil
}

func (s *Service) edit(ctx context.Context, actor *idmodels.User, nr *models.NameRequest, in *patchInput) (*Result, error) {
	if err := requireHolder(nr, in.token, actor); err != nil {
		return nil, err
	}
	if raw, ok := in.payload.StateCd.Value(); ok {
		if err := policy.CheckEditTransition(actor, nr.StateCd, models.State(raw)); err != nil {
			return nil, err
		}
	}
	now := requestcontext.Now(ctx)

	var saved *models.NameRequest
	err := s.tx.RunInTx(ctx, func(store Store) error {
		if raw, ok := in.payload.StateCd.Value(); ok && models.State(raw) != nr.StateCd {
			s.applyStateChange(nr, models.State(raw), nil, now)
		}
		if err := s.applyPartialEdit(nr, in.payload, actor, now); err != nil {
			return err
		}
		if err := s.save(ctx, store, nr); err != nil {
			return err
		}
		var err error
		saved, err = s.load(ctx, store, nr.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, saved, events.ActionEdit, in.payload)
	return s.result(ctx, saved), nil
}

func (s *Service) resend(ctx context.Context, actor *idmodels.User, nr *models.NameRequest, in *patchInput) (*Result, error) {
	if err := requireHolder(nr, in.token, actor); err != nil {
		return nil, err
	}
	e := s.record(ctx, actor, nr, events.ActionResend, map[string]any{"stateCd": nr.StateCd})
	s.notify(ctx, actor, nr, ports.OptionResend, map[string]string{"eventId": e.ID.String()})
	return s.result(ctx, nr), nil
}

func (s *Service) cancel(ctx context.Context, actor *idmodels.User, nr *models.NameRequest, in *patchInput) (*Result, error) {
	if err := requireHolder(nr, in.token, actor); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	err := s.tx.RunInTx(ctx, func(store Store) error {
		nr.ApplyCheckin()
		s.applyStateChange(nr, models.StateCancelled, nil, now)
		return s.save(ctx, store, nr)
	})
	if err != nil {
		return nil, err
	}

	s.syncSearch(ctx, nr)
	s.record(ctx, actor, nr, events.ActionCancel, nr)
	return s.result(ctx, nr), nil
}

func (s *Service) requestRefund(ctx context.Context, actor *idmodels.User, nr *models.NameRequest, in *patchInput) (*Result, error) {
	if err := policy.CheckRefund(nr); err != nil {
		return nil, err
	}
	if err := requireHolder(nr, in.token, actor); err != nil {
		return nil, err
	}
	// read before the state change commits; a failed read changes nothing
	payments, err := s.store.ListPayments(ctx, nr.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payments")
	}
	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, func(store Store) error {
		s.applyStateChange(nr, models.StateRefundRequested, nil, now)
		return s.save(ctx, store, nr)
	})
	if err != nil {
		return nil, err
	}

	refund := s.refundAll(ctx, nr, payments)
	s.notify(ctx, actor, nr, ports.OptionRefund, map[string]string{"refundValue": refund.TotalString()})
	s.syncSearch(ctx, nr)
	s.record(ctx, actor, nr, events.ActionRequestRefund, refundEvent{NameRequest: nr, Refund: refund})

	res := s.result(ctx, nr)
	res.Refund = refund
	return res, nil
}

// Rollback forces a request into CANCELLED whatever its state. It is the
// recovery path for requests left inconsistent by upstream failures.
func (s *Service) Rollback(ctx context.Context, actor *idmodels.User, id domain.RequestID, rawAction string) (*Result, error) {
	if actor == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if _, err := models.ParseRollbackAction(rawAction); err != nil {
		return nil, err
	}
	if !policy.CanRollback(actor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "rollback requires the system or approver role")
	}
	start := time.Now()
	ctx, span := startSpan(ctx, "namerequest.rollback",
		attribute.String(traceAttrAction, rawAction),
		attribute.String(traceAttrRequestID, id.String()),
	)
	defer span.End()

	var res *Result
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		nr, err := s.load(ctx, s.store, id)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		previous := nr.StateCd
		err = s.tx.RunInTx(ctx, func(store Store) error {
			nr.ApplyCheckin()
			s.applyStateChange(nr, models.StateCancelled, nil, now)
			return s.save(ctx, store, nr)
		})
		if err != nil {
			return err
		}

		s.logger.WarnContext(ctx, "name request rolled back",
			"nr_num", nr.NRNum,
			"previous_state", previous,
			"user_id", actor.ID,
		)
		s.syncSearch(ctx, nr)
		s.record(ctx, actor, nr, events.ActionRollback, map[string]any{"previousStateCd": previous})
		res = s.result(ctx, nr)
		return nil
	})
	markSpanResult(span, err)
	s.observe("rollback", start, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Replace overwrites the editable content of a request that has not yet
// reached examination.
func (s *Service) Replace(ctx context.Context, actor *idmodels.User, id domain.RequestID, p *validation.PutPayload) (*Result, error) {
	if actor == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := validation.ValidatePut(p); err != nil {
		return nil, err
	}
	state := models.State(p.TargetState())
	start := time.Now()
	ctx, span := startSpan(ctx, "namerequest.replace",
		attribute.String(traceAttrAction, "PUT"),
		attribute.String(traceAttrRequestID, id.String()),
	)
	defer span.End()

	var res *Result
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		nr, err := s.load(ctx, s.store, id)
		if err != nil {
			return err
		}
		if !policy.IsPutState(nr.StateCd) {
			err := dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("Name Request in state %s cannot be replaced", nr.StateCd))
			s.recordFailure(ctx, actor, nr, events.ActionPut, err)
			return err
		}
		if err := requireHolder(nr, p.CheckedOutBy, actor); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		var flags ChangeFlags
		err = s.tx.RunInTx(ctx, func(store Store) error {
			var err error
			flags, err = s.applyFullReplace(ctx, store, nr, p, state, actor, now)
			if err != nil {
				return err
			}
			if !flags.Any() {
				return nil
			}
			if err := s.save(ctx, store, nr); err != nil {
				return err
			}
			nr, err = s.load(ctx, store, nr.ID)
			return err
		})
		if err != nil {
			s.recordFailure(ctx, actor, nr, events.ActionPut, err)
			return err
		}

		if flags.Reset {
			s.notify(ctx, actor, nr, ports.OptionReset, nil)
		}
		if flags.ConsentReceived {
			s.notify(ctx, actor, nr, ports.OptionConsentReceived, nil)
		}
		s.record(ctx, actor, nr, events.ActionPut, nr)
		nr.FillEntityAndAction()
		res = s.result(ctx, nr)
		return nil
	})
	markSpanResult(span, err)
	s.observe("put", start, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}
