package ports

//go:generate mockgen -source=payment.go -destination=mocks/payment_mocks.go -package=mocks

import "context"

// PaymentGateway is the external payment service holding the transactions
// referenced by name request payments.
type PaymentGateway interface {
	GetPayment(ctx context.Context, token string) (*PaymentDetail, error)
	RefundPayment(ctx context.Context, token string, payload map[string]any) error
}

// PaymentDetail is the port model of a payment transaction.
type PaymentDetail struct {
	Total    float64
	Receipts []Receipt
}

type Receipt struct {
	ReceiptNumber string
	ReceiptAmount float64
}

// ReceiptAmount is the amount of the first receipt, or zero.
func (p *PaymentDetail) ReceiptAmount() float64 {
	if p == nil || len(p.Receipts) == 0 {
		return 0
	}
	return p.Receipts[0].ReceiptAmount
}
