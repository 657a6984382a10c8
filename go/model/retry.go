package model

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
)

// apiError is a non-200 response of the model endpoint.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("model endpoint returned status %d: %s", e.Status, e.Body)
}

// permanentError marks a failure which must not be retried: invalid
// requests, authorization failures, malformed responses.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// isTransient reports whether an error is worth retrying: transport
// failures, 5xx responses, and rate limits.
func isTransient(err error) bool {
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status == 429 || ae.Status >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// backoffDelay is base * 2^attempt with ±25% jitter.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	var delay = float64(base) * float64(int64(1)<<attempt)
	var jitter = 0.75 + rand.Float64()*0.5
	return time.Duration(delay * jitter)
}

// withRetry runs fn with the client's retry policy. Transient failures
// are retried up to MaxRetries with exponential backoff; each retry wait
// respects the remaining context deadline, failing fast when the wait
// would exceed it.
func (c *HTTPClient) withRetry(ctx context.Context, op Op, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var out, err = fn()
		modelCalls.WithLabelValues(string(op), callStatus(err)).Inc()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !isTransient(err) {
			return "", fmt.Errorf("%s: %s: %w", op, err, ErrUnavailable)
		}
		if attempt >= c.cfg.MaxRetries {
			return "", fmt.Errorf("%s: retries exhausted: %s: %w", op, lastErr, ErrUnavailable)
		}

		var delay = backoffDelay(c.cfg.RetryBase, attempt)
		if deadline, ok := ctx.Deadline(); ok && time.Now().Add(delay).After(deadline) {
			return "", fmt.Errorf("%s: no deadline budget for retry: %w", op, context.DeadlineExceeded)
		}

		log.WithFields(log.Fields{
			"op":      op,
			"attempt": attempt + 1,
			"delay":   delay,
			"err":     err,
		}).Warn("retrying model call")
		modelRetries.WithLabelValues(string(op)).Inc()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func callStatus(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
