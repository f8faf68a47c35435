package feed

import (
	"math/rand"
	"time"
)

// Backoff produces reconnect delays: exponential growth from Base clamped
// at Max, plus additive jitter of up to delay·JitterFactor. The exponent
// saturates at 10 failures; the clamp keeps the delay at Max, not the
// attempt counter.
type Backoff struct {
	Base         time.Duration
	Max          time.Duration
	JitterFactor float64

	attempt int
	randFn  func() float64
}

// NewBackoff creates a backoff policy with the given parameters.
func NewBackoff(base, max time.Duration, jitterFactor float64) *Backoff {
	return &Backoff{
		Base:         base,
		Max:          max,
		JitterFactor: jitterFactor,
		randFn:       rand.Float64,
	}
}

// Next returns the delay for the current failure and advances the attempt
// counter.
func (b *Backoff) Next() time.Duration {
	exp := b.attempt
	if exp > 10 {
		exp = 10
	}
	delay := b.Base * (1 << exp)
	if delay > b.Max {
		delay = b.Max
	}

	var jitter time.Duration
	if b.JitterFactor > 0 {
		jitter = time.Duration(float64(delay) * b.JitterFactor * b.randFn())
	}

	b.attempt++
	return delay + jitter
}

// Reset clears the attempt counter after a successful subscribe.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns the number of consecutive failures recorded so far.
func (b *Backoff) Attempt() int {
	return b.attempt
}
