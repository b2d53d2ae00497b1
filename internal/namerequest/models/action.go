package models

import (
	"strings"

	dErrors "namex/pkg/domain-errors"
)

// PatchAction is a mutation requested through the action endpoint.
type PatchAction string

const (
	PatchCheckout      PatchAction = "CHECKOUT"
	PatchCheckin       PatchAction = "CHECKIN"
	PatchEdit          PatchAction = "EDIT"
	PatchCancel        PatchAction = "CANCEL"
	PatchResend        PatchAction = "RESEND"
	PatchRequestRefund PatchAction = "REQUEST_REFUND"
)

// PatchActions lists every action in dispatch order.
var PatchActions = []PatchAction{
	PatchCheckout, PatchCheckin, PatchEdit, PatchCancel, PatchResend, PatchRequestRefund,
}

func (a PatchAction) IsValid() bool {
	for _, v := range PatchActions {
		if v == a {
			return true
		}
	}
	return false
}

func ParsePatchAction(s string) (PatchAction, error) {
	a := PatchAction(strings.ToUpper(s))
	if !a.IsValid() {
		names := make([]string, len(PatchActions))
		for i, v := range PatchActions {
			names[i] = string(v)
		}
		return "", dErrors.New(dErrors.CodeInvalidInput,
			"Invalid Name Request PATCH action, please use one of ["+strings.Join(names, ", ")+"]")
	}
	return a, nil
}

// RollbackAction is a recovery action.
type RollbackAction string

const RollbackCancel RollbackAction = "CANCEL"

func ParseRollbackAction(s string) (RollbackAction, error) {
	a := RollbackAction(strings.ToUpper(s))
	if a != RollbackCancel {
		return "", dErrors.New(dErrors.CodeInvalidInput, "Invalid rollback action")
	}
	return a, nil
}

// ClientAction is an action offered to the client for the current state.
type ClientAction string

const (
	ActionEdit        ClientAction = "EDIT"
	ActionUpgrade     ClientAction = "UPGRADE"
	ActionCancel      ClientAction = "CANCEL"
	ActionRefund      ClientAction = "REFUND"
	ActionReapply     ClientAction = "REAPPLY"
	ActionResend      ClientAction = "RESEND"
	ActionIncorporate ClientAction = "INCORPORATE"
	ActionReceipts    ClientAction = "RECEIPTS"
	ActionResult      ClientAction = "RESULT"
	ActionCheckout    ClientAction = "CHECKOUT"
	ActionCheckin     ClientAction = "CHECKIN"
)
