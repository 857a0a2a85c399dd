// Package partner submits confirmed contracts to the partner insurer's
// portal and returns the fee report it computes.
//
// The portal's authentication and cookie handling happen elsewhere; the
// client only forwards the resolved session token and agent code.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

var (
	// ErrRejected means the portal refused the submission (4xx). Not retried.
	ErrRejected = errors.New("partner rejected submission")

	// ErrUnavailable means the portal could not be reached or failed (5xx).
	ErrUnavailable = errors.New("partner unavailable")

	// ErrNotConfigured means no portal URL was set.
	ErrNotConfigured = errors.New("partner base url not configured")
)

// maxReportBytes caps the fee report read from the portal.
const maxReportBytes = 1 << 20

// Payload is the contract data sent for review.
type Payload struct {
	ContractNumber string         `json:"contract_number"`
	Product        string         `json:"product"`
	Fields         map[string]any `json:"fields,omitempty"`
}

// AuthContext carries the already-established portal session.
type AuthContext struct {
	SessionToken string
	AgentCode    string
}

// Result is the outcome of a submission. RawText is only meaningful when
// Success is true.
type Result struct {
	Success bool   `json:"success"`
	RawText string `json:"raw_text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Config configures the HTTP client.
type Config struct {
	// BaseURL is the portal root, e.g. https://portal.example.com.
	BaseURL string
	// Timeout is the HTTP request timeout.
	Timeout time.Duration
	// MaxRetries is the maximum number of attempts.
	MaxRetries int
	// RetryDelay is the initial delay between retries.
	RetryDelay time.Duration
	// CircuitBreakerThreshold is consecutive failures before opening.
	CircuitBreakerThreshold int
	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration
	// UserAgent is the User-Agent header value.
	UserAgent string
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:                 30 * time.Second,
		MaxRetries:              3,
		RetryDelay:              1 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		UserAgent:               "contract-engine/1.0",
	}
}

// LatencyRecorder receives the duration of every submission.
type LatencyRecorder interface {
	ObservePartnerCall(outcome string, d time.Duration)
}

// Client submits contracts with retry and a circuit breaker.
type Client struct {
	config  Config
	http    *http.Client
	breaker circuitbreaker.CircuitBreaker[string]
	retrier retry.Retry[string]
	latency LatencyRecorder
}

// NewClient creates a client, filling unset config values with defaults.
func NewClient(config Config) *Client {
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = def.RetryDelay
	}
	if config.CircuitBreakerThreshold <= 0 {
		config.CircuitBreakerThreshold = def.CircuitBreakerThreshold
	}
	if config.CircuitBreakerTimeout <= 0 {
		config.CircuitBreakerTimeout = def.CircuitBreakerTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	threshold := uint32(config.CircuitBreakerThreshold) // #nosec G115 -- positive, checked above

	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		breaker: circuitbreaker.New[string](circuitbreaker.Config{
			MaxRequests: 10,
			Interval:    config.CircuitBreakerTimeout,
			Timeout:     config.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		}),
		retrier: retry.New[string](retry.Config{
			MaxAttempts:        config.MaxRetries,
			InitialDelay:       config.RetryDelay,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         2.0,
			NonRetryableErrors: []error{ErrRejected},
		}),
	}
}

// WithLatency attaches a latency recorder and returns the client.
func (c *Client) WithLatency(r LatencyRecorder) *Client {
	c.latency = r
	return c
}

// SubmitForReview posts the payload and returns the portal's fee report.
// On failure the returned Result carries the cause and err is non-nil.
func (c *Client) SubmitForReview(ctx context.Context, payload Payload, auth AuthContext) (Result, error) {
	if c.config.BaseURL == "" {
		return Result{Error: ErrNotConfigured.Error()}, ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Error: err.Error()}, fmt.Errorf("failed to serialize payload: %w", err)
	}

	start := time.Now()
	text, err := c.breaker.Execute(ctx, func(ctx context.Context) (string, error) {
		return c.retrier.Do(ctx, func(ctx context.Context) (string, error) {
			return c.post(ctx, body, auth)
		})
	})
	if c.latency != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		c.latency.ObservePartnerCall(outcome, time.Since(start))
	}
	if err != nil {
		return Result{Error: err.Error()}, err
	}
	return Result{Success: true, RawText: text}, nil
}

// post performs one attempt. The request is rebuilt per attempt so the body
// reader is fresh on retry.
func (c *Client) post(ctx context.Context, body []byte, auth AuthContext) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/contracts/review", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if auth.SessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+auth.SessionToken)
	}
	if auth.AgentCode != "" {
		req.Header.Set("X-Agent-Code", auth.AgentCode)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBytes))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return string(text), nil
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, snippet(text))
	default:
		return "", fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, snippet(text))
	}
}

func snippet(b []byte) string {
	if len(b) > 256 {
		b = b[:256]
	}
	return strings.TrimSpace(string(b))
}
