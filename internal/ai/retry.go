package ai

import (
	"context"
	"math/rand"
	"time"
)

const (
	// DefaultMaxRetries is the retry budget for transient stream failures.
	// The attempt after the budget is exhausted is terminal.
	DefaultMaxRetries = 4

	// retryBaseDelay is the jitter ceiling for the first retry; the ceiling
	// doubles with every further attempt.
	retryBaseDelay = 1000 * time.Millisecond
)

// RetryPolicy decides whether a stream failure is worth another connection
// attempt and how long to wait before it. It is a pure decision value; the
// caller threads the attempt counter and last error explicitly.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration

	// rand returns a uniform value in [0, 1); swapped out in tests.
	rand func() float64
}

func NewRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  retryBaseDelay,
		rand:       rand.Float64,
	}
}

// RetriableStatus reports whether an HTTP status is worth retrying.
// Everything else in the 4xx range is a terminal server rejection.
func RetriableStatus(status int) bool {
	switch status {
	case 429, 502, 503, 504:
		return true
	}
	return false
}

// ShouldRetry reports whether another attempt may be scheduled. attempt is
// 1-indexed: the first retry is attempt 1.
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if attempt > p.MaxRetries {
		return false
	}
	var se *StreamError
	if !asStreamError(err, &se) {
		// Raw transport failure with no classification yet.
		return true
	}
	return se.Retriable
}

// Delay computes the full-jitter backoff for the given 1-indexed attempt:
// a uniform duration in [0, BaseDelay * 2^(attempt-1) * 2) == [0, base<<attempt).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.BaseDelay
	if base <= 0 {
		base = retryBaseDelay
	}
	ceiling := base << uint(attempt)
	r := p.rand
	if r == nil {
		r = rand.Float64
	}
	return time.Duration(r() * float64(ceiling))
}

// Wait sleeps for the computed backoff, returning early with ctx.Err() if the
// caller cancels. A cancelled caller never schedules a retry.
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
