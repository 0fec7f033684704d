package alerting

import (
	"context"
	"errors"
	"testing"
	"time"
)

func instantPolicy(maxAttempts int) (RetryPolicy, *[]time.Duration) {
	delays := []time.Duration{}
	policy := NewRetryPolicy(maxAttempts, time.Second, 30*time.Second)
	policy.Jitter = 0
	policy.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return policy, &delays
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	policy, _ := instantPolicy(3)

	attempts := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return TransientError("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	policy, delays := instantPolicy(3)

	attempts := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return &DeliveryError{StatusCode: 500, Message: "server error"}
	})
	if err == nil {
		t.Fatal("expected failure after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d", attempts)
	}
	// Exponential backoff between attempts: 1s then 2s.
	if len(*delays) != 2 || (*delays)[0] != time.Second || (*delays)[1] != 2*time.Second {
		t.Fatalf("delays = %v", *delays)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	policy, _ := instantPolicy(5)

	attempts := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return PermanentError("bad request")
	})
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("permanent errors must not be retried, attempts = %d", attempts)
	}
}

func TestRetryHonorsRetryAfter(t *testing.T) {
	policy, delays := instantPolicy(2)

	attempts := 0
	_ = policy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return &DeliveryError{StatusCode: 429, RetryAfter: 7 * time.Second, Message: "rate limited"}
	})
	if len(*delays) != 1 || (*delays)[0] != 7*time.Second {
		t.Fatalf("expected Retry-After delay, got %v", *delays)
	}
}

func TestRetryRespectsCancellation(t *testing.T) {
	policy := NewRetryPolicy(5, time.Second, 30*time.Second)
	policy.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	attempts := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return TransientError("temporary")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestDelayCapped(t *testing.T) {
	policy := NewRetryPolicy(10, time.Second, 4*time.Second)
	policy.Jitter = 0
	if d := policy.delay(5); d != 4*time.Second {
		t.Fatalf("delay should cap at max, got %v", d)
	}
}

func TestDelayJitterBounds(t *testing.T) {
	policy := NewRetryPolicy(3, time.Second, 30*time.Second)
	policy.Jitter = 0.2
	policy.rand = func() float64 { return 1 }
	if d := policy.delay(1); d != 1200*time.Millisecond {
		t.Fatalf("upper jitter bound = %v", d)
	}
	policy.rand = func() float64 { return 0 }
	if d := policy.delay(1); d != 800*time.Millisecond {
		t.Fatalf("lower jitter bound = %v", d)
	}
}
