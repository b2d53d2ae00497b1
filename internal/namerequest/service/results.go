package service

import (
	"context"
	"time"

	"namex/internal/namerequest/models"
	"namex/internal/namerequest/policy"
	"namex/pkg/domain"
	"namex/pkg/requestcontext"
)

// Result is the outcome of an operation: the aggregate as persisted and the
// actions valid from its new state.
type Result struct {
	Request *models.NameRequest
	Actions []models.ClientAction
	// Minimal is set for checkout and checkin, whose callers only get the
	// lock fields back.
	Minimal bool
	// Demoted is the request the examiner previously had in progress, if
	// taking this one demoted it.
	Demoted *models.NameRequest
	Refund  *RefundResult
}

// LockView is the minimal payload returned for checkout and checkin.
type LockView struct {
	ID           domain.RequestID      `json:"id"`
	CheckedOutBy *string               `json:"checkedOutBy,omitempty"`
	CheckedOutDt *time.Time            `json:"checkedOutDt,omitempty"`
	State        models.State          `json:"state"`
	StateCd      models.State          `json:"stateCd"`
	Actions      []models.ClientAction `json:"actions"`
}

// LockView renders the minimal checkout/checkin payload.
func (r *Result) LockView() LockView {
	return LockView{
		ID:           r.Request.ID,
		CheckedOutBy: r.Request.CheckedOutBy,
		CheckedOutDt: r.Request.CheckedOutDt,
		State:        r.Request.StateCd,
		StateCd:      r.Request.StateCd,
		Actions:      r.Actions,
	}
}

func (s *Service) result(ctx context.Context, nr *models.NameRequest) *Result {
	actions := policy.ValidActionsFor(nr, requestcontext.Now(ctx))
	if actions == nil {
		actions = []models.ClientAction{}
	}
	return &Result{Request: nr, Actions: actions}
}
