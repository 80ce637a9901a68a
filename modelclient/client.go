// Package modelclient wraps gollm behind the single-shot completion surface
// the planner depends on: Generate(ctx, prompt) -> string. It owns provider
// error classification, bounded retry with extracted or default backoff, and
// a minimum interval between calls to stay inside free-tier rate limits.
package modelclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teilomillet/gollm"
)

// GenerateFunc is the raw completion function a Client drives. It exists so
// tests can substitute a canned generator for a live provider.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// Client is the model-client collaborator. A single Client is safe for
// sequential use by one task; the rate limiter serializes concurrent callers.
type Client struct {
	provider    string
	model       string
	generate    GenerateFunc
	retry       RetryPolicy
	minInterval time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	lastCall time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) { c.retry = policy }
}

// WithMinInterval sets the minimum spacing between provider calls.
// Zero disables rate limiting.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) { c.minInterval = d }
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client backed by a gollm LLM for the given provider and
// model. If apiKey is empty, gollm reads it from the provider's environment
// variable.
func New(provider, model, apiKey string, opts ...Option) (*Client, error) {
	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxRetries(0), // we handle retries ourselves
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(apiKey))
	}

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", provider, err)
	}

	gen := func(ctx context.Context, prompt string) (string, error) {
		return llm.Generate(ctx, gollm.NewPrompt(prompt))
	}
	return NewFromGenerateFunc(provider, model, gen, opts...), nil
}

// NewFromGenerateFunc creates a Client over an arbitrary completion function.
func NewFromGenerateFunc(provider, model string, gen GenerateFunc, opts ...Option) *Client {
	c := &Client{
		provider:    provider,
		model:       model,
		generate:    gen,
		retry:       DefaultRetryPolicy(),
		minInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Provider returns the provider identifier.
func (c *Client) Provider() string { return c.provider }

// Model returns the model identifier.
func (c *Client) Model() string { return c.model }

// Generate sends a prompt and returns the completion text. Rate-limit and
// server errors are retried per the configured policy; other provider errors
// surface immediately.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.waitForInterval(ctx); err != nil {
		return "", err
	}

	policy := c.retry
	if policy.OnRetry == nil {
		policy.OnRetry = func(err error, attempt int, delay time.Duration) {
			c.logger.Warn("model call failed, retrying",
				"provider", c.provider,
				"attempt", attempt,
				"delay", delay,
				"error", err)
		}
	}

	text, err := Retry(ctx, policy, func(ctx context.Context) (string, error) {
		c.markCall()
		out, genErr := c.generate(ctx, prompt)
		if genErr != nil {
			return "", classifyError(c.provider, genErr)
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// waitForInterval blocks until the minimum spacing since the last call has
// elapsed, yielding to context cancellation.
func (c *Client) waitForInterval(ctx context.Context) error {
	if c.minInterval <= 0 {
		return nil
	}

	c.mu.Lock()
	elapsed := time.Since(c.lastCall)
	wait := c.minInterval - elapsed
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	c.logger.Debug("rate limiting before model call", "wait", wait)
	select {
	case <-ctx.Done():
		return &ClientError{Message: "cancelled while rate limiting", Cause: ctx.Err()}
	case <-time.After(wait):
		return nil
	}
}

func (c *Client) markCall() {
	c.mu.Lock()
	c.lastCall = time.Now()
	c.mu.Unlock()
}
