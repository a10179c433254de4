package assistant

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"
)

// Retry delays for idempotent reads. Short, since a user is waiting.
var retryDelays = []time.Duration{
	100 * time.Millisecond,
	300 * time.Millisecond,
}

const (
	defaultRetryAttempts = 3

	// JitterFactor is the ±percentage of jitter applied to delays.
	JitterFactor = 0.2 // ±20%
)

// NextRetryDelay calculates next retry delay with backoff + jitter.
// attempt is 0-indexed (after first failed attempt, attempt = 0).
func NextRetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(retryDelays) {
		attempt = len(retryDelays) - 1
	}

	base := retryDelays[attempt]

	// Add ±20% jitter to prevent thundering herd
	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}

// retry runs fn up to attempts times while it fails with a retryable error
// and ctx allows another wait.
func retry(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !retryable(err) || i == attempts-1 {
			return err
		}

		timer := time.NewTimer(NextRetryDelay(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

// retryable reports whether err is transient: a transport failure or a 5xx.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError
	}
	return errors.Is(err, ErrUnavailable)
}
