package alerting

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// DeliveryError classifies a failed webhook delivery attempt. Transient
// failures (network errors, 5xx, 429) are retried; permanent failures
// (4xx, malformed URLs, oversize payloads) are not.
type DeliveryError struct {
	StatusCode int
	Permanent  bool
	RetryAfter time.Duration
	Message    string
}

func (e *DeliveryError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("webhook delivery failed: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("webhook delivery failed: %s", e.Message)
}

// PermanentError builds a non-retryable delivery error.
func PermanentError(msg string) *DeliveryError {
	return &DeliveryError{Permanent: true, Message: msg}
}

// TransientError builds a retryable delivery error.
func TransientError(msg string) *DeliveryError {
	return &DeliveryError{Message: msg}
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Permanent
	}
	return false
}

// RetryPolicy retries an operation with capped exponential backoff and
// jitter. It is independent of the transport so it can be exercised without
// network calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64

	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
}

// NewRetryPolicy constructs a policy with sane fallbacks for zero values.
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		Jitter:      0.2,
		sleep:       sleepContext,
		rand:        rand.Float64,
	}
}

// Execute runs op until it succeeds, fails permanently, exhausts the attempt
// budget, or the context is cancelled. The last error is returned.
func (p RetryPolicy) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) || attempt == p.MaxAttempts {
			return lastErr
		}

		delay := p.delay(attempt)
		var de *DeliveryError
		if errors.As(lastErr, &de) && de.RetryAfter > 0 {
			delay = de.RetryAfter
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if p.Jitter > 0 {
		r := rand.Float64
		if p.rand != nil {
			r = p.rand
		}
		spread := 1 + p.Jitter*(2*r()-1)
		delay = time.Duration(float64(delay) * spread)
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
