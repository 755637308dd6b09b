package relay

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// ExponentialRetryPolicy implements RetryPolicy with jittered backoff.
// The delivery boundary uses it with a 30s base delay.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds a policy for the reply delivery boundary.
func NewExponentialRetryPolicy(maxAttempts int, baseDelay time.Duration) *ExponentialRetryPolicy {
	return &ExponentialRetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    8 * baseDelay,
	}
}

// ShouldRetry decides whether the error is retryable.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// A malformed reply will stay malformed; retrying only delays the drop.
	return !errors.Is(err, ErrInvalidReply)
}

// Backoff returns the wait duration before the next attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

// FixedRetryPolicy retries a fixed number of times with a constant delay.
// The lookup API call uses it with 3 attempts and a 3s backoff.
type FixedRetryPolicy struct {
	maxAttempts int
	delay       time.Duration
}

// NewFixedRetryPolicy builds a fixed-backoff policy.
func NewFixedRetryPolicy(maxAttempts int, delay time.Duration) *FixedRetryPolicy {
	return &FixedRetryPolicy{maxAttempts: maxAttempts, delay: delay}
}

// ShouldRetry decides whether the error is retryable.
func (p *FixedRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.maxAttempts {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Backoff returns the constant delay.
func (p *FixedRetryPolicy) Backoff(int) time.Duration { return p.delay }

// Retry runs fn under the policy, sleeping between attempts. The first
// attempt is number zero. It returns the last error when the policy
// declines further attempts or the context ends.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !policy.ShouldRetry(err, attempt+1) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Backoff(attempt)):
		}
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
