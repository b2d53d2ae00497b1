// Package events is the append-only trail of who did what to which name
// request. Events are written once and never updated or deleted.
package events

import (
	"encoding/json"
	"time"

	"namex/pkg/domain"
)

// Outcome records whether the operation behind an event succeeded.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event actions. Sub-actions of a PATCH are written as "patch [sub]".
const (
	ActionGet          = "get"
	ActionPut          = "put"
	ActionPatch        = "patch"
	ActionPost         = "post"
	ActionNotification = "notification"

	ActionCheckout      = "patch [checkout]"
	ActionCheckin       = "patch [checkin]"
	ActionEdit          = "patch [edit]"
	ActionResend        = "patch [re-send]"
	ActionCancel        = "patch [cancel]"
	ActionRequestRefund = "patch [request-refund]"
	ActionRollback      = "patch [rollback]"
)

// Event is a single audit record.
type Event struct {
	ID            domain.EventID   `json:"id"`
	RequestID     domain.RequestID `json:"requestId"`
	NRNum         domain.NRNumber  `json:"nrNum"`
	UserID        domain.UserID    `json:"userId"`
	Username      string           `json:"username"`
	Action        string           `json:"action"`
	StateCd       string           `json:"stateCd"`
	Outcome       Outcome          `json:"outcome"`
	Data          json.RawMessage  `json:"jsonData,omitempty"`
	EventDate     time.Time        `json:"eventDate"`
	CorrelationID string           `json:"correlationId,omitempty"`
}

// HistoryEntry is the staff-facing view of one event, with the request
// snapshot accumulated from all earlier events.
type HistoryEntry struct {
	ID              domain.EventID   `json:"id"`
	AdditionalInfo  *string          `json:"additionalInfo"`
	ConsentDate     *string          `json:"consent_dt"`
	ConsentFlag     *string          `json:"consentFlag"`
	CorpNum         *string          `json:"corpNum"`
	EventDate       time.Time        `json:"eventDate"`
	ExpirationDate  *string          `json:"expirationDate"`
	Furnished       *string          `json:"furnished"`
	Names           []map[string]any `json:"names"`
	PriorityCd      *string          `json:"priorityCd"`
	RequestTypeCd   *string          `json:"requestTypeCd"`
	RequestActionCd *string          `json:"request_action_cd"`
	StateCd         string           `json:"stateCd"`
	UserAction      string           `json:"user_action"`
	UserName        string           `json:"user_name"`
	Comment         *string          `json:"comment,omitempty"`
	Option          *string          `json:"option"`
	Email           *string          `json:"email"`
	ResendDate      *string          `json:"resend_date,omitempty"`
}

// History is the response shape of an event history lookup, newest first.
type History struct {
	Count        int            `json:"count"`
	Transactions []HistoryEntry `json:"transactions"`
}
