package models

import (
	dErrors "namex/pkg/domain-errors"
)

// State is the lifecycle state of a name request.
type State string

const (
	StateDraft           State = "DRAFT"
	StateCondReserve     State = "COND_RESERVE"
	StateReserved        State = "RESERVED"
	StatePendingPayment  State = "PENDING_PAYMENT"
	StateInProgress      State = "INPROGRESS"
	StateHold            State = "HOLD"
	StateApproved        State = "APPROVED"
	StateConditional     State = "CONDITIONAL"
	StateRejected        State = "REJECTED"
	StateConsumed        State = "CONSUMED"
	StateExpired         State = "EXPIRED"
	StateCancelled       State = "CANCELLED"
	StateRefundRequested State = "REFUND_REQUESTED"
)

var validStates = map[State]struct{}{
	StateDraft: {}, StateCondReserve: {}, StateReserved: {}, StatePendingPayment: {},
	StateInProgress: {}, StateHold: {}, StateApproved: {}, StateConditional: {},
	StateRejected: {}, StateConsumed: {}, StateExpired: {}, StateCancelled: {},
	StateRefundRequested: {},
}

func (s State) IsValid() bool {
	_, ok := validStates[s]
	return ok
}

func (s State) String() string { return string(s) }

// ParseState rejects anything outside the closed state set.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "not a valid state: "+s)
	}
	return st, nil
}

// NameState is the examination outcome of a single name choice.
type NameState string

const (
	NameNotExamined NameState = "NE"
	NameApproved    NameState = "APPROVED"
	NameCondition   NameState = "CONDITION"
	NameRejected    NameState = "REJECTED"
)

// Consumable reports whether a corporation may consume the name.
func (s NameState) Consumable() bool {
	return s == NameApproved || s == NameCondition
}

// Flag values for furnished and consent columns.
const (
	FlagYes      = "Y"
	FlagNo       = "N"
	FlagReceived = "R"
)
