package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"namex/internal/namerequest/ports"
	"namex/pkg/platform/circuit"
)

var _ ports.PaymentGateway = (*PaymentClient)(nil)

// PaymentClient talks to the payment service's invoice API.
type PaymentClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *circuit.Breaker
}

type PaymentOption func(*PaymentClient)

func WithPaymentHTTPClient(c *http.Client) PaymentOption {
	return func(p *PaymentClient) {
		p.httpClient = c
	}
}

func WithPaymentBreaker(b *circuit.Breaker) PaymentOption {
	return func(p *PaymentClient) {
		p.breaker = b
	}
}

func NewPaymentClient(baseURL, token string, opts ...PaymentOption) (*PaymentClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("payment api url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse payment api url: %w", err)
	}
	p := &PaymentClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		breaker:    circuit.New("payment"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type invoiceResponse struct {
	Total    float64 `json:"total"`
	Receipts []struct {
		ReceiptNumber string  `json:"receiptNumber"`
		ReceiptAmount float64 `json:"receiptAmount"`
	} `json:"receipts"`
}

// GetPayment fetches the invoice behind a payment token.
func (p *PaymentClient) GetPayment(ctx context.Context, token string) (*ports.PaymentDetail, error) {
	endpoint := fmt.Sprintf("%s/payment-requests/%s", p.baseURL, url.PathEscape(token))
	var out invoiceResponse
	if err := call(ctx, p.httpClient, p.breaker, http.MethodGet, endpoint, p.token, nil, &out); err != nil {
		return nil, err
	}
	detail := &ports.PaymentDetail{Total: out.Total}
	for _, r := range out.Receipts {
		detail.Receipts = append(detail.Receipts, ports.Receipt{
			ReceiptNumber: r.ReceiptNumber,
			ReceiptAmount: r.ReceiptAmount,
		})
	}
	return detail, nil
}

// RefundPayment asks the payment service to refund the invoice in full.
func (p *PaymentClient) RefundPayment(ctx context.Context, token string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode refund: %w", err)
	}
	endpoint := fmt.Sprintf("%s/payment-requests/%s/refunds", p.baseURL, url.PathEscape(token))
	return call(ctx, p.httpClient, p.breaker, http.MethodPost, endpoint, p.token, body, nil)
}
