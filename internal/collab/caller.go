package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/mcoot/guessduel-go/internal/api/apierr"
	"github.com/mcoot/guessduel-go/internal/metrics"
	"github.com/mcoot/guessduel-go/internal/model"
)

// StatusError is a business rejection (4xx) reported by a collaborator.
// It unwraps to the matching model sentinel when the code is known, and to
// model.ErrUpstreamUnavailable otherwise.
type StatusError struct {
	Service string
	Status  int
	Code    string
	Message string

	sentinel error
}

func (e *StatusError) Error() string {
	return e.Message
}

func (e *StatusError) Unwrap() error {
	return e.sentinel
}

var errMalformedResponse = errors.New("malformed response")

// caller performs JSON calls against one collaborator with a per-attempt
// timeout, bounded retry and a circuit breaker
type caller struct {
	service    string
	baseURL    string
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func newCaller(service, baseURL string, cfg Config, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *caller {
	c := &caller{
		service:    service,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		cfg:        cfg,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			c.metrics.SetBreakerState(name, int(to))
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || errors.As(err, &se) || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// call sends body to path and decodes the reply into result. Only
// idempotent operations should pass retry.
func (c *caller) call(ctx context.Context, op, path string, body, result any, retry bool) error {
	start := time.Now()

	attempt := func() error {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.doOnce(ctx, path, body, result)
		})
		if err == nil {
			return nil
		}

		var se *StatusError
		switch {
		case errors.As(err, &se):
			return backoff.Permanent(err)
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(err)
		case errors.Is(err, errMalformedResponse):
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		}
		return err
	}

	var err error
	if retry && c.cfg.MaxRetries > 0 {
		err = backoff.Retry(attempt, c.retryPolicy(ctx))
	} else {
		err = attempt()
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}

	outcome := "ok"
	var se *StatusError
	switch {
	case err == nil:
	case errors.As(err, &se):
		outcome = "rejected"
	default:
		outcome = "unavailable"
		c.logger.Warn("collaborator call failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		err = fmt.Errorf("%s %s: %w: %w", c.service, op, model.ErrUpstreamUnavailable, err)
	}
	c.metrics.CollabCall(c.service, op, outcome, time.Since(start))
	return err
}

func (c *caller) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxRetries), ctx)
}

// doOnce performs a single POST attempt
func (c *caller) doOnce(ctx context.Context, path string, body, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		return c.statusError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %w", errMalformedResponse, err)
		}
	}
	return nil
}

// statusError decodes a 4xx reply. Besides the usual envelope it accepts a
// bare {"error": "message"} body.
func (c *caller) statusError(status int, body []byte) *StatusError {
	se := &StatusError{
		Service: c.service,
		Status:  status,
		Message: fmt.Sprintf("%s service error", c.service),
	}

	var envelope apierr.ErrorResponse
	var bare struct {
		Error string `json:"error"`
	}
	switch {
	case json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "":
		se.Code = envelope.Error.Code
		if envelope.Error.Message != "" {
			se.Message = envelope.Error.Message
		}
		se.sentinel = apierr.Sentinel(se.Code)
	case json.Unmarshal(body, &bare) == nil && bare.Error != "":
		se.Message = bare.Error
	}

	if se.sentinel == nil {
		se.sentinel = model.ErrUpstreamUnavailable
	}
	return se
}
