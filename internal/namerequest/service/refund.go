package service

import (
	"context"
	"fmt"

	"namex/internal/namerequest/models"
)

// Refund outcomes per payment.
const (
	RefundIssued  = "refunded"
	RefundZero    = "zero_total"
	RefundSkipped = "skipped"
	RefundFailed  = "failed"
)

// PaymentRefund is the outcome for one payment.
type PaymentRefund struct {
	PaymentID int64                `json:"paymentId"`
	Token     string               `json:"token"`
	Result    string               `json:"result"`
	Status    models.PaymentStatus `json:"statusCode"`
	Amount    float64              `json:"amount"`
	Error     string               `json:"error,omitempty"`
}

// RefundResult is the aggregate of a refund run. Payments are processed best
// effort; each entry's status is what was persisted for that payment.
type RefundResult struct {
	Payments      []PaymentRefund `json:"payments"`
	Total         float64         `json:"total"`
	SkippedReason string          `json:"skippedReason,omitempty"`
}

// TotalString formats the refunded total the way the emailer expects.
func (r *RefundResult) TotalString() string {
	if r == nil {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", r.Total)
}

// Failed reports whether any payment could not be refunded.
func (r *RefundResult) Failed() bool {
	for _, p := range r.Payments {
		if p.Result == RefundFailed {
			return true
		}
	}
	return false
}

// refundAll refunds every settled payment on nr. Renewed requests are never
// refunded. A failure on one payment does not stop the others.
func (s *Service) refundAll(ctx context.Context, nr *models.NameRequest, payments []*models.Payment) *RefundResult {
	result := &RefundResult{Payments: []PaymentRefund{}}

	if models.HasReapply(payments) {
		result.SkippedReason = "request has been renewed"
		for _, p := range payments {
			result.Payments = append(result.Payments, PaymentRefund{
				PaymentID: p.ID, Token: p.Token, Result: RefundSkipped, Status: p.StatusCode,
			})
		}
		s.metrics.IncrementRefund(RefundSkipped, 0)
		s.logger.InfoContext(ctx, "refund skipped for renewed name request", "nr_num", nr.NRNum)
		return result
	}

	for _, p := range payments {
		if !p.StatusCode.Refundable() {
			result.Payments = append(result.Payments, PaymentRefund{
				PaymentID: p.ID, Token: p.Token, Result: RefundSkipped, Status: p.StatusCode,
			})
			continue
		}
		out := s.refundOne(ctx, nr, p)
		result.Total += out.Amount
		result.Payments = append(result.Payments, out)
		s.metrics.IncrementRefund(out.Result, out.Amount)
	}
	return result
}

func (s *Service) refundOne(ctx context.Context, nr *models.NameRequest, p *models.Payment) PaymentRefund {
	out := PaymentRefund{PaymentID: p.ID, Token: p.Token, Status: p.StatusCode}
	fail := func(err error, msg string) PaymentRefund {
		s.metrics.IncrementSideEffectFailure("payment")
		s.logger.ErrorContext(ctx, msg,
			"nr_num", nr.NRNum,
			"payment_id", p.ID,
			"error", err,
		)
		out.Result = RefundFailed
		out.Error = err.Error()
		return out
	}

	if s.payments == nil {
		return fail(fmt.Errorf("payment gateway is not configured"), "cannot refund payment")
	}
	detail, err := s.payments.GetPayment(ctx, p.Token)
	if err != nil {
		return fail(err, "failed to fetch payment")
	}
	out.Result = RefundZero
	if detail.Total != 0 {
		if err := s.payments.RefundPayment(ctx, p.Token, map[string]any{}); err != nil {
			return fail(err, "failed to refund payment")
		}
		out.Result = RefundIssued
	}

	p.StatusCode = models.PaymentRefundRequested
	if err := s.store.SavePayment(ctx, p); err != nil {
		return fail(err, "failed to save refunded payment")
	}
	out.Status = p.StatusCode
	out.Amount = detail.ReceiptAmount()
	return out
}
