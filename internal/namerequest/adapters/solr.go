// Package adapters holds the HTTP clients for the collaborators behind the
// search index and payment gateway ports.
package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"namex/internal/namerequest/ports"
	"namex/pkg/domain"
	dErrors "namex/pkg/domain-errors"
	"namex/pkg/platform/circuit"
)

const defaultHTTPTimeout = 10 * time.Second

var _ ports.SearchIndex = (*SolrClient)(nil)

// SolrClient removes documents from Solr cores.
type SolrClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuit.Breaker
}

type SolrOption func(*SolrClient)

func WithSolrHTTPClient(c *http.Client) SolrOption {
	return func(s *SolrClient) {
		s.httpClient = c
	}
}

func WithSolrBreaker(b *circuit.Breaker) SolrOption {
	return func(s *SolrClient) {
		s.breaker = b
	}
}

func NewSolrClient(baseURL string, opts ...SolrOption) (*SolrClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("solr url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse solr url: %w", err)
	}
	s := &SolrClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		breaker:    circuit.New("solr"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DeleteDocument deletes the document keyed by nrNum and commits.
func (s *SolrClient) DeleteDocument(ctx context.Context, core string, nrNum domain.NRNumber) error {
	body, err := json.Marshal(map[string]any{"delete": nrNum.String()})
	if err != nil {
		return fmt.Errorf("encode solr delete: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s/update?commit=true", s.baseURL, url.PathEscape(core))
	return call(ctx, s.httpClient, s.breaker, http.MethodPost, endpoint, "", body, nil)
}

// call performs one JSON request through the breaker. A non-2xx response is
// an external error carrying the status.
func call(ctx context.Context, client *http.Client, breaker *circuit.Breaker, method, endpoint, bearer string, body []byte, out any) error {
	if breaker != nil && !breaker.Allow() {
		return dErrors.New(dErrors.CodeExternal, breaker.Name()+" is unavailable")
	}
	err := do(ctx, client, method, endpoint, bearer, body, out)
	if breaker != nil {
		if err != nil {
			breaker.RecordFailure()
		} else {
			breaker.RecordSuccess()
		}
	}
	return err
}

func do(ctx context.Context, client *http.Client, method, endpoint, bearer string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternal, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return dErrors.New(dErrors.CodeExternal,
			fmt.Sprintf("%s %s returned %d: %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternal, "decode response")
	}
	return nil
}
