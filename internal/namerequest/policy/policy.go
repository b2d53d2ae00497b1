// Package policy decides which state transitions and actions are legal for a
// name request. Everything here is pure: no I/O, no clocks other than the one
// passed in.
package policy

import (
	"fmt"
	"slices"
	"time"

	idmodels "namex/internal/identity/models"
	"namex/internal/namerequest/models"
	dErrors "namex/pkg/domain-errors"
)

// reapplyWindow is how long before expiry a request may be renewed.
const reapplyWindow = 14 * 24 * time.Hour

var (
	// putStates are the only states a full replace may start from.
	putStates = []models.State{
		models.StateDraft, models.StateCondReserve, models.StateReserved, models.StatePendingPayment,
	}
	requestEditable = []models.State{
		models.StateDraft, models.StateCondReserve, models.StateReserved,
	}
	contactEditable = []models.State{
		models.StateInProgress, models.StateHold, models.StateApproved, models.StateConditional,
	}
	refundable = []models.State{models.StateDraft}
	completed  = []models.State{
		models.StateApproved, models.StateRejected, models.StateConditional, models.StateConsumed, models.StateExpired,
	}
	decision = []models.State{
		models.StateApproved, models.StateRejected, models.StateConditional,
	}
)

func IsPutState(s models.State) bool { return slices.Contains(putStates, s) }

func IsRequestEditable(s models.State) bool { return slices.Contains(requestEditable, s) }

func IsContactEditable(s models.State) bool { return slices.Contains(contactEditable, s) }

// IsEditable reports whether partial updates are accepted in s.
func IsEditable(s models.State) bool { return IsRequestEditable(s) || IsContactEditable(s) }

func IsRefundable(s models.State) bool { return slices.Contains(refundable, s) }

func IsCompleted(s models.State) bool { return slices.Contains(completed, s) }

// IsDecision reports whether s is an examination outcome that sets expiry.
func IsDecision(s models.State) bool { return slices.Contains(decision, s) }

// ClearsReset reports whether entering s clears the has-been-reset flag.
func ClearsReset(s models.State) bool { return IsCompleted(s) || s == models.StateCancelled }

// IsTransitionValid decides whether an actor holding roles may move a request
// from current to requested.
func IsTransitionValid(actor *idmodels.User, current, requested models.State) bool {
	if !requested.IsValid() || !actor.CanEdit() {
		return false
	}
	if actor.IsSystem() {
		return true
	}
	if requested == current {
		return true
	}
	switch {
	case IsDecision(requested):
		return actor.IsApprover()
	case requested == models.StateConsumed:
		return actor.IsApprover()
	case IsCompleted(current):
		// re-opening a decided request
		return actor.IsApprover()
	}
	return true
}

// CheckEditTransition guards a state carried on a partial update. Decisions
// are only made through the examiner's state change; SYSTEM may still set
// them.
func CheckEditTransition(actor *idmodels.User, current, requested models.State) error {
	if requested == current {
		return nil
	}
	if IsDecision(requested) && !actor.IsSystem() {
		return dErrors.New(dErrors.CodeForbidden,
			fmt.Sprintf("a partial update cannot move a request to %s", requested))
	}
	if !IsTransitionValid(actor, current, requested) {
		return dErrors.New(dErrors.CodeForbidden,
			fmt.Sprintf("not permitted to move a request from %s to %s", current, requested))
	}
	return nil
}

// CanRollback reports whether the actor may force a request into CANCELLED.
func CanRollback(actor *idmodels.User) bool {
	return actor.IsSystem() || actor.IsApprover()
}

// CheckCheckout returns a lock error unless the caller may take the checkout.
// A free request must be request-editable; a held request may only be
// re-taken by the current holder.
func CheckCheckout(nr *models.NameRequest, token *string) error {
	if !nr.IsCheckedOut() {
		if !IsRequestEditable(nr.StateCd) {
			return dErrors.New(dErrors.CodeLocked, "The request is currently being processed.")
		}
		return nil
	}
	if token == nil || !nr.HeldBy(token) {
		return dErrors.New(dErrors.CodeLocked, "The request is currently being processed.")
	}
	return nil
}

// CheckRefund returns a lock error unless the request may be cancelled with a refund.
func CheckRefund(nr *models.NameRequest) error {
	if !IsRefundable(nr.StateCd) {
		return dErrors.New(dErrors.CodeLocked, "The request is not in a refundable state.")
	}
	return nil
}

// ValidActionsFor lists the client actions offered for the request in its
// current state.
func ValidActionsFor(nr *models.NameRequest, now time.Time) []models.ClientAction {
	var actions []models.ClientAction
	switch nr.StateCd {
	case models.StateDraft:
		actions = []models.ClientAction{models.ActionEdit, models.ActionUpgrade, models.ActionCancel,
			models.ActionRefund, models.ActionResend, models.ActionReceipts}
	case models.StateCondReserve:
		actions = []models.ClientAction{models.ActionEdit, models.ActionReceipts}
	case models.StateReserved:
		actions = []models.ClientAction{models.ActionEdit, models.ActionResend, models.ActionReceipts}
	case models.StatePendingPayment:
		actions = []models.ClientAction{models.ActionCancel}
	case models.StateInProgress:
		actions = []models.ClientAction{models.ActionReceipts}
	case models.StateHold:
		actions = []models.ClientAction{models.ActionEdit, models.ActionUpgrade, models.ActionCancel, models.ActionReceipts}
	case models.StateApproved, models.StateConditional:
		actions = []models.ClientAction{models.ActionEdit, models.ActionReapply, models.ActionResend,
			models.ActionIncorporate, models.ActionReceipts, models.ActionResult}
	case models.StateRejected:
		actions = []models.ClientAction{models.ActionResend, models.ActionReceipts, models.ActionResult}
	case models.StateConsumed, models.StateExpired:
		actions = []models.ClientAction{models.ActionReceipts, models.ActionResult}
	case models.StateCancelled, models.StateRefundRequested:
		actions = []models.ClientAction{models.ActionReceipts}
	}

	actions = slices.DeleteFunc(actions, func(a models.ClientAction) bool {
		switch a {
		case models.ActionUpgrade:
			return nr.PriorityCd == models.FlagYes
		case models.ActionReapply:
			return !inReapplyWindow(nr.ExpirationDate, now)
		}
		return false
	})

	if nr.IsCheckedOut() {
		actions = append(actions, models.ActionCheckin)
	} else if IsRequestEditable(nr.StateCd) {
		actions = append(actions, models.ActionCheckout)
	}
	return actions
}

func inReapplyWindow(expiry *time.Time, now time.Time) bool {
	if expiry == nil {
		return false
	}
	return now.Before(*expiry) && expiry.Sub(now) <= reapplyWindow
}
