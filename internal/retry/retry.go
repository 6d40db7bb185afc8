// Package retry bounds how many consecutive failures a repeating operation
// tolerates before giving up.
package retry

import (
	"context"
	"errors"
)

// Config controls retry behavior for a repeated call.
type Config struct {
	// MaxAttempts is the number of consecutive failed attempts allowed before
	// the last error is surfaced. Values below 1 mean a single attempt.
	MaxAttempts int
	// ShouldRetry classifies errors. Nil retries everything except context
	// errors.
	ShouldRetry func(error) bool
}

// Policy tracks consecutive failures of one logical operation. It is not safe
// for concurrent use; each session owns its own Policy.
type Policy struct {
	cfg      Config
	failures int
}

// NewPolicy returns a Policy with no recorded failures.
func NewPolicy(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

// Failure records err and reports whether the caller may attempt again.
func (p *Policy) Failure(ctx context.Context, err error) bool {
	p.failures++
	if p.failures >= normalizedAttempts(p.cfg.MaxAttempts) {
		return false
	}
	return shouldRetry(ctx, p.cfg, err)
}

// Success resets the consecutive failure count.
func (p *Policy) Success() { p.failures = 0 }

// Failures returns the current run of consecutive failures.
func (p *Policy) Failures() int { return p.failures }

func normalizedAttempts(maxAttempts int) int {
	if maxAttempts < 1 {
		return 1
	}
	return maxAttempts
}

func shouldRetry(ctx context.Context, cfg Config, err error) bool {
	if ctx != nil && ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if cfg.ShouldRetry == nil {
		return true
	}
	return cfg.ShouldRetry(err)
}
