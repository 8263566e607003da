package dispatch

import (
	"math/rand"
	"time"
)

// Policy tunes retry, backoff and fallback behavior for one invocation.
// The zero value is not useful; start from DefaultPolicy.
type Policy struct {
	// MaxAttempts is the total number of attempts (first try included).
	MaxAttempts int

	// BaseDelay seeds the exponential backoff: base << attempt, capped at
	// MaxDelay, with JitterFraction applied.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration

	// JitterFraction randomizes each delay by ±fraction to avoid thundering
	// retries against a recovering server. 0 disables jitter.
	JitterFraction float64

	// AttemptTimeout bounds a single attempt. 0 means no per-attempt
	// deadline beyond the caller's context. Distinct from the overall retry
	// budget, which the caller controls through ctx.
	AttemptTimeout time.Duration

	// FallbackServer, when set, names the server to invoke when the primary
	// is unreachable or all attempts are exhausted. The fallback is tried
	// once with the same policy minus its own fallback; no chains.
	FallbackServer string
}

// DefaultPolicy returns the baseline dispatch policy: three attempts, 100ms
// base delay doubling up to 5s, 20% jitter, no per-attempt timeout and no
// fallback.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		JitterFraction: 0.2,
	}
}

// normalized fills in defaults for zero fields so a partially specified
// policy behaves predictably.
func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	return p
}

// backoff computes the delay before the given retry attempt (attempt 1 is
// the first retry).
func (p Policy) backoff(attempt int, rng *rand.Rand) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	if p.JitterFraction > 0 && rng != nil {
		// Uniform in [1-f, 1+f].
		factor := 1 + p.JitterFraction*(2*rng.Float64()-1)
		d = time.Duration(float64(d) * factor)
	}
	if d < 0 {
		d = 0
	}
	return d
}
