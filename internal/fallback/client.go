// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

// Package fallback talks to the backend's synchronous HTTP API.
//
// The WebSocket channel is the primary path. This client covers the two
// cases the channel cannot: cancelling while the channel is down, and loading
// the initial reservation snapshot at startup. Every call goes through a
// token-bucket limiter and a circuit breaker so a struggling backend is not
// hammered by retries.
package fallback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/metrics"
	"github.com/tomtom215/slotsync/internal/models"
)

const (
	cancelPath = "/api/reservations/cancel"
	listPath   = "/api/reservations"

	// maxErrorBody bounds how much of an error response is read into messages.
	maxErrorBody = 4 << 10
)

// ErrDisabled is returned when no HTTP base URL is configured.
var ErrDisabled = errors.New("http fallback disabled")

// Config configures the fallback client.
type Config struct {
	BaseURL            string
	Token              string
	Timeout            time.Duration
	RatePerSecond      float64
	Burst              int
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// Client is a rate-limited, circuit-broken HTTP client for the backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
	name    string
}

// statusError carries a non-2xx response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.status, e.body)
}

// New creates a Client. It returns ErrDisabled when cfg.BaseURL is empty.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrDisabled
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	name := "backend-http"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	maxFailures := cfg.BreakerMaxFailures
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= maxFailures
			if trip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening backend HTTP circuit")
			}
			return trip
		},
		// Rejections are answers from a healthy backend.
		IsSuccessful: func(err error) bool {
			var se *statusError
			return err == nil || (errors.As(err, &se) && se.status < http.StatusInternalServerError)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] Backend HTTP state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cb:      cb,
		name:    name,
	}, nil
}

// State returns the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

type cancelRequest struct {
	SubjectID string `json:"subject_id"`
	Date      string `json:"date"`
}

type cancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CancelReservation cancels synchronously and normalizes the response into a
// Result. Transport problems become send failures; an explicit refusal
// becomes a rejection carrying the backend's reason.
func (c *Client) CancelReservation(ctx context.Context, subjectID, date string) models.Result {
	body, err := json.Marshal(cancelRequest{SubjectID: subjectID, Date: date})
	if err != nil {
		return models.Failed(models.FailureSendFailure, "")
	}

	raw, err := c.do(ctx, "cancel", http.MethodPost, cancelPath, body)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status < http.StatusInternalServerError {
			return models.Failed(models.FailureRejected, reasonFromBody(se.body))
		}
		logging.Warn().Err(err).Str("subject_id", subjectID).Str("date", date).Msg("HTTP cancel failed")
		return models.Failed(models.FailureSendFailure, "")
	}

	var resp cancelResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		logging.Warn().Err(err).Msg("Malformed HTTP cancel response")
		return models.Failed(models.FailureSendFailure, "")
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = resp.Message
		}
		return models.Failed(models.FailureRejected, reason)
	}
	return models.Succeeded(resp.Message)
}

// ListReservations fetches the current reservation snapshot.
func (c *Client) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	raw, err := c.do(ctx, "list", http.MethodGet, listPath, nil)
	if err != nil {
		return nil, err
	}

	var items []models.ReservationData
	if err := json.Unmarshal(raw, &items); err != nil {
		// Some deployments wrap the list in {"data": [...]}.
		var wrapped struct {
			Data []models.ReservationData `json:"data"`
		}
		if werr := json.Unmarshal(raw, &wrapped); werr != nil {
			return nil, fmt.Errorf("failed to decode reservations: %w", err)
		}
		items = wrapped.Data
	}

	out := make([]models.Reservation, 0, len(items))
	for i := range items {
		out = append(out, items[i].Merge(models.Reservation{}))
	}
	return out, nil
}

// do runs one request through the limiter and breaker and returns the body.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.FallbackRequests.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	raw, err := c.cb.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, body)
	})
	switch {
	case err == nil:
		metrics.FallbackRequests.WithLabelValues(endpoint, "success").Inc()
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.FallbackRequests.WithLabelValues(endpoint, "rejected").Inc()
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
		logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Backend HTTP request rejected")
	default:
		metrics.FallbackRequests.WithLabelValues(endpoint, "failure").Inc()
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
	}
	return raw, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &statusError{status: resp.StatusCode, body: string(msg)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return raw, nil
}

// reasonFromBody extracts error or message from a JSON error body, falling
// back to the raw text.
func reasonFromBody(body string) string {
	var r cancelResponse
	if err := json.Unmarshal([]byte(body), &r); err == nil {
		if r.Error != "" {
			return r.Error
		}
		if r.Message != "" {
			return r.Message
		}
	}
	return strings.TrimSpace(body)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
