package modelclient

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGenerateReturnsCompletion(t *testing.T) {
	c := NewFromGenerateFunc("test", "test-model", func(ctx context.Context, prompt string) (string, error) {
		return "completion for: " + prompt, nil
	}, WithMinInterval(0))

	got, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "completion for: hello" {
		t.Errorf("unexpected completion: %q", got)
	}
}

func TestGenerateRetriesRateLimit(t *testing.T) {
	calls := 0
	c := NewFromGenerateFunc("test", "test-model", func(ctx context.Context, prompt string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("429 rate limit. Please retry in 0.001s")
		}
		return "ok", nil
	},
		WithMinInterval(0),
		WithRetryPolicy(RetryPolicy{MaxRetries: 2, BaseDelay: 0.001, BackoffMultiplier: 1, MaxDelay: 120, RateLimitDelay: 0.001}),
	)

	got, err := c.Generate(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("expected ok, got %q", got)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestGenerateDoesNotRetryAuthError(t *testing.T) {
	calls := 0
	c := NewFromGenerateFunc("test", "test-model", func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "", errors.New("401 unauthorized")
	},
		WithMinInterval(0),
		WithRetryPolicy(RetryPolicy{MaxRetries: 3, BaseDelay: 0.001, BackoffMultiplier: 1, MaxDelay: 0.001}),
	)

	_, err := c.Generate(context.Background(), "x")
	var auth *AuthenticationError
	if !errors.As(err, &auth) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestGenerateHonorsMinInterval(t *testing.T) {
	c := NewFromGenerateFunc("test", "test-model", func(ctx context.Context, prompt string) (string, error) {
		return "ok", nil
	}, WithMinInterval(50*time.Millisecond))

	start := time.Now()
	if _, err := c.Generate(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Generate(context.Background(), "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("second call should have waited, elapsed %v", elapsed)
	}
}

func TestGenerateCancelledWhileRateLimiting(t *testing.T) {
	c := NewFromGenerateFunc("test", "test-model", func(ctx context.Context, prompt string) (string, error) {
		return "ok", nil
	}, WithMinInterval(10*time.Second))

	if _, err := c.Generate(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.Generate(ctx, "b"); err == nil {
		t.Fatal("expected cancellation error")
	}
}
