// Package notification publishes name request emails to the emailer topic.
// Publishing is asynchronous: callers enqueue and a worker drains to Kafka.
package notification

import (
	"time"

	"github.com/google/uuid"

	"namex/pkg/domain"
)

// Options understood by the emailer.
const (
	OptionRefund          = "refund"
	OptionReset           = "RESET"
	OptionConsentReceived = "CONSENT_RECEIVED"
	OptionApproved        = "APPROVED"
	OptionConditional     = "CONDITIONAL"
	OptionRejected        = "REJECTED"
	OptionResend          = "RESEND"
)

const (
	messageSource = "/requests/"
	messageType   = "bc.registry.names.request"
)

// Message is a CloudEvents-shaped envelope for the emailer.
type Message struct {
	SpecVersion string    `json:"specversion"`
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Type        string    `json:"type"`
	Subject     string    `json:"subject"`
	Time        time.Time `json:"time"`
	Data        Data      `json:"data"`
}

type Data struct {
	Request RequestData `json:"request"`
}

// RequestData carries the NR and what the email is about. Extra detail
// values (refund amount, original event id) ride along as optional fields.
type RequestData struct {
	NRNum       string `json:"nrNum"`
	Option      string `json:"option"`
	RefundValue string `json:"refundValue,omitempty"`
	EventID     string `json:"eventId,omitempty"`
}

// NewMessage builds the envelope for an NR notification.
func NewMessage(nrNum domain.NRNumber, option string, detail map[string]string, now time.Time) Message {
	return Message{
		SpecVersion: "1.0.1",
		ID:          uuid.NewString(),
		Source:      messageSource + string(nrNum),
		Type:        messageType,
		Subject:     "namerequest",
		Time:        now.UTC(),
		Data: Data{Request: RequestData{
			NRNum:       string(nrNum),
			Option:      option,
			RefundValue: detail["refundValue"],
			EventID:     detail["eventId"],
		}},
	}
}
