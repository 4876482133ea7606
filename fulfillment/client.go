package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultRequestTimeout bounds a single provider call, independent of the
// caller's context.
const defaultRequestTimeout = 30 * time.Second

// APIError is a rejected or failed provider call. Transient reports whether
// the same request may succeed later (provider outage, timeout, rate limit),
// as opposed to a permanent rejection of the payload itself.
type APIError struct {
	StatusCode int
	Message    string
	Transient  bool
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("fulfillment provider unreachable: %s", e.Message)
	}
	return fmt.Sprintf("fulfillment provider returned %d: %s", e.StatusCode, e.Message)
}

// IsTransient reports whether err is a provider failure worth retrying.
// Network errors and 5xx/429 responses are transient, anything else is a
// permanent rejection.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient
	}
	return false
}

// Config contains the provider endpoint and credentials.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is a thin HTTP client for the print provider's order API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a provider client from config, applying the default request
// timeout when none is set.
func New(conf Config) *Client {
	timeout := conf.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL: conf.BaseURL,
		apiKey:  conf.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// orderEnvelope is the provider's response wrapper.
type orderEnvelope struct {
	Result OrderResponse `json:"result"`
	Error  string        `json:"error,omitempty"`
}

// CreateOrder submits a new print order. On failure it returns an *APIError
// classified as transient or permanent.
func (c *Client) CreateOrder(ctx context.Context, order *OrderRequest) (*OrderResponse, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("could not encode order: %v", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// connection refused, DNS failure, client timeout
		return nil, &APIError{Message: err.Error(), Transient: true}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: err.Error(), Transient: true}
	}
	if resp.StatusCode >= 400 {
		var envelope orderEnvelope
		msg := string(raw)
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
			msg = envelope.Error
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			Transient:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}
	var envelope orderEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("could not decode response: %v", err)}
	}
	return &envelope.Result, nil
}
