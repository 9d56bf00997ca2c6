package feed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls how an HTTPSource retries transient failures with
// exponential backoff and jitter.
type RetryPolicy struct {
	// MaxAttempts counts the first try. 1 disables retries.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// JitterFraction spreads each delay by up to ±fraction.
	JitterFraction float64
}

// DefaultRetryPolicy returns three attempts starting at 250ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		JitterFraction: 0.25,
	}
}

// statusError is a non-200 feed response.
type statusError struct {
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("feed: returned status %d", e.StatusCode)
}

// transient reports whether a failed fetch is worth repeating: request
// timeouts, throttling and 5xx gateway errors, or a network timeout.
func transient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusRequestTimeout,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// withRetry runs fn until it succeeds, fails permanently, or the policy is
// exhausted. Context cancellation stops it immediately.
func withRetry[T any](ctx context.Context, p RetryPolicy, diseaseID int, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(1, p.MaxAttempts)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !transient(err) || attempt == attempts-1 {
			break
		}

		delay := p.backoff(attempt)
		zap.L().Warn("feed: retrying fetch",
			zap.Int("disease_id", diseaseID),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.InitialBackoff) * math.Pow(2, float64(attempt))
	if p.MaxBackoff > 0 && delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}
	if p.JitterFraction > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.JitterFraction
	}
	return time.Duration(max(0, delay))
}
