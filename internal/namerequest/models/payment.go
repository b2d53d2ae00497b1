package models

import "namex/pkg/domain"

// PaymentStatus mirrors the status column maintained by the payment service.
type PaymentStatus string

const (
	PaymentCreated         PaymentStatus = "CREATED"
	PaymentApproved        PaymentStatus = "APPROVED"
	PaymentCompleted       PaymentStatus = "COMPLETED"
	PaymentPartial         PaymentStatus = "PARTIAL"
	PaymentCancelled       PaymentStatus = "CANCELLED"
	PaymentRefundRequested PaymentStatus = "REFUND_REQUESTED"
)

// Refundable reports whether a payment in this status may be refunded.
func (s PaymentStatus) Refundable() bool {
	return s == PaymentApproved || s == PaymentCompleted || s == PaymentPartial
}

// PaymentAction records why a payment was taken.
type PaymentAction string

const (
	PaymentActionCreate   PaymentAction = "CREATE"
	PaymentActionReapply  PaymentAction = "REAPPLY"
	PaymentActionUpgrade  PaymentAction = "UPGRADE"
	PaymentActionResubmit PaymentAction = "RESUBMIT"
)

// Payment links a name request to a transaction held by the payment service.
type Payment struct {
	ID         int64            `json:"id"`
	RequestID  domain.RequestID `json:"nrId"`
	Token      string           `json:"token"`
	StatusCode PaymentStatus    `json:"statusCode"`
	Action     PaymentAction    `json:"action"`
	Amount     float64          `json:"amount"`
}

// HasReapply reports whether any payment renewed the request. Renewed
// requests are never refunded.
func HasReapply(payments []*Payment) bool {
	for _, p := range payments {
		if p.Action == PaymentActionReapply {
			return true
		}
	}
	return false
}
