package controller

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait before the next one.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewRetryPolicy builds a policy with an attempt-scaled, capped backoff.
func NewRetryPolicy(maxAttempts int, base, maxDelay time.Duration) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryPolicy{maxAttempts: maxAttempts, baseDelay: base, maxDelay: maxDelay}
}

// ShouldRetry reports whether another attempt may follow attempt. A nil err
// means the attempt succeeded but was not fresh enough to accept.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Final reports whether attempt is the last one allowed.
func (p *RetryPolicy) Final(attempt int) bool {
	return attempt >= p.maxAttempts
}

// Backoff returns the wait before the attempt that follows attempt: base
// scaled by the attempt number, capped, with the upper half jittered.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.baseDelay * time.Duration(attempt)
	if p.maxDelay > 0 && delay > p.maxDelay {
		delay = p.maxDelay
	}
	half := delay / 2
	return half + randomJitter(delay-half)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
