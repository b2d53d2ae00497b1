package ports

//go:generate mockgen -source=notification.go -destination=mocks/notification_mocks.go -package=mocks

import (
	"context"

	"namex/pkg/domain"
)

// NotificationPublisher hands an email notification to the emailer. Delivery
// is asynchronous and at-least-once; an error means the notification was not
// accepted at all.
type NotificationPublisher interface {
	Publish(ctx context.Context, nrNum domain.NRNumber, option string, detail map[string]string) error
}

// Notification options understood by the emailer.
const (
	OptionRefund          = "refund"
	OptionReset           = "RESET"
	OptionConsentReceived = "CONSENT_RECEIVED"
	OptionApproved        = "APPROVED"
	OptionConditional     = "CONDITIONAL"
	OptionRejected        = "REJECTED"
	OptionResend          = "RESEND"
)
