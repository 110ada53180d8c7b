package processors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DispatchTimeout bounds both the connect and the total round trip of
// every outbound call. It is short on purpose: it is what lets the
// breakers trip inside a useful window during a partial outage.
const DispatchTimeout = 100 * time.Millisecond

// ErrServerError is returned when a processor answers 5xx; it counts as
// a breaker failure, unlike a 4xx rejection.
var ErrServerError = errors.New("processor returned server error")

// ErrBadHealthPayload is returned when a health probe answered 2xx but
// the body did not parse.
var ErrBadHealthPayload = errors.New("unparseable health payload")

type dispatchRequest struct {
	CorrelationID uuid.UUID `json:"correlationId"`
	Amount        float64   `json:"amount"`
	RequestedAt   time.Time `json:"requestedAt"`
}

// ServiceHealth is a processor's answer to GET /payments/service-health.
type ServiceHealth struct {
	Failing         bool  `json:"failing"`
	MinResponseTime int64 `json:"minResponseTime"`
}

// Client talks to the external payment processors. A single instance is
// shared by all workers and the health monitor; the underlying pool is
// safe for concurrent use.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: DispatchTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: DispatchTimeout,
				}).DialContext,
				MaxIdleConnsPerHost: 64,
			},
		},
	}
}

// Dispatch POSTs a payment to {baseURL}/payments. It returns
// (true, nil) when the processor accepted it, (false, nil) when the
// processor rejected it with a 4xx (terminal, not retried), and an
// error on 5xx or transport failure.
func (c *Client) Dispatch(ctx context.Context, baseURL string, correlationID uuid.UUID, amount float64, requestedAt time.Time) (bool, error) {
	body, err := json.Marshal(dispatchRequest{
		CorrelationID: correlationID,
		Amount:        amount,
		RequestedAt:   requestedAt,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal dispatch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to reach processor: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrServerError, resp.StatusCode)
	}
}

// CheckHealth GETs {baseURL}/payments/service-health. Callers must not
// probe the same processor more than once per 5 seconds.
func (c *Client) CheckHealth(ctx context.Context, baseURL string) (*ServiceHealth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/payments/service-health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("health probe returned %d", resp.StatusCode)
	}

	var health ServiceHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHealthPayload, err)
	}

	return &health, nil
}
