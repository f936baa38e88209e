package poller

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Backoff defaults: the window after n consecutive failures is
// min(BackoffBase * 2^n, MaxBackoff).
const (
	BackoffBase       = time.Second
	BackoffFactor     = 2
	DefaultMaxBackoff = 5 * time.Minute
)

// Backoff tracks how long a cached response may be replayed after a failed
// fetch. Each failure doubles the window up to the cap; a success resets it.
type Backoff struct {
	exp    *backoff.ExponentialBackOff
	window time.Duration
}

// NewBackoff returns a deterministic (unrandomized) exponential backoff
// capped at limit. A non-positive limit uses DefaultMaxBackoff.
func NewBackoff(limit time.Duration) *Backoff {
	if limit <= 0 {
		limit = DefaultMaxBackoff
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = BackoffBase * BackoffFactor
	exp.Multiplier = BackoffFactor
	exp.RandomizationFactor = 0
	exp.MaxInterval = limit
	exp.Reset()
	return &Backoff{exp: exp}
}

// Fail records a failure and returns the new replay window.
func (b *Backoff) Fail() time.Duration {
	b.window = b.exp.NextBackOff()
	if b.window > b.exp.MaxInterval {
		b.window = b.exp.MaxInterval
	}
	return b.window
}

// Reset clears the window after a successful fetch.
func (b *Backoff) Reset() {
	b.exp.Reset()
	b.window = 0
}

// Window is the replay window set by the most recent failure.
func (b *Backoff) Window() time.Duration {
	return b.window
}
