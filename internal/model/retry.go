package model

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"
)

const (
	defaultMaxAttempts  = 10
	defaultInitialDelay = 1 * time.Second
	defaultMultiplier   = 2.0
)

// RetryPolicy retries a call with exponential backoff. Only errors the
// Retryable predicate accepts are retried; everything else fails immediately.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	Jitter       bool
	Retryable    func(error) bool
}

// DefaultRetryPolicy retries rate-limit-class errors only.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  defaultMaxAttempts,
		InitialDelay: defaultInitialDelay,
		Multiplier:   defaultMultiplier,
		Jitter:       true,
		Retryable:    IsRateLimitError,
	}
}

// Do executes fn, retrying per the policy. Exhausting all attempts returns a
// terminal error wrapping the last failure.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	delay := p.InitialDelay
	if delay <= 0 {
		delay = defaultInitialDelay
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = defaultMultiplier
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRateLimitError
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				log.Printf("[Retry] Succeeded on attempt %d/%d", attempt, maxAttempts)
			}
			return nil
		}

		if !retryable(lastErr) {
			return lastErr
		}

		if attempt == maxAttempts {
			break
		}

		wait := delay
		if p.Jitter {
			wait = time.Duration(float64(delay) * (1 + rand.Float64()))
		}
		log.Printf("[Retry] Retryable error on attempt %d/%d, waiting %v: %v", attempt, maxAttempts, wait, lastErr)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = time.Duration(float64(delay) * multiplier)
	}

	return fmt.Errorf("maximum number of retries (%d) exceeded: %w", maxAttempts, lastErr)
}

// IsRateLimitError reports whether err looks like backend throttling.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var sve *SchemaValidationError
	if errors.As(err, &sve) {
		// Malformed output is recovered downstream, never retried here
		return false
	}

	errStr := strings.ToLower(err.Error())
	rateLimitPatterns := []string{
		"rate limit",
		"ratelimit",
		"too many requests",
		"status 429",
		"quota exceeded",
		"resource exhausted",
		"overloaded",
	}

	for _, pattern := range rateLimitPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// retryInvoker wraps an Invoker with a RetryPolicy at the call boundary.
type retryInvoker struct {
	inner  Invoker
	policy RetryPolicy
}

// WithRetry wraps inv so every invocation goes through policy.
func WithRetry(inv Invoker, policy RetryPolicy) Invoker {
	return &retryInvoker{inner: inv, policy: policy}
}

func (r *retryInvoker) Invoke(ctx context.Context, messages []Message) (string, error) {
	var out string
	err := r.policy.Do(ctx, func() error {
		var callErr error
		out, callErr = r.inner.Invoke(ctx, messages)
		return callErr
	})
	return out, err
}

func (r *retryInvoker) InvokeStructured(ctx context.Context, messages []Message, schema *Schema, out any) error {
	return r.policy.Do(ctx, func() error {
		return r.inner.InvokeStructured(ctx, messages, schema, out)
	})
}

func (r *retryInvoker) Name() string { return r.inner.Name() }
