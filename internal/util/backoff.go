package util

import (
	"math/rand"
	"time"
)

// Backoff yields exponentially growing waits with proportional jitter.
// It is not safe for concurrent use; each loop owns its own.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	factor  float64
	jitter  float64

	cur time.Duration
}

// NewBackoff returns a Backoff starting at initial, multiplying by factor
// after each Next, capped at max. jitter is a fraction (0.2 = ±20%).
func NewBackoff(initial, max time.Duration, factor, jitter float64) *Backoff {
	if factor < 1 {
		factor = 1
	}
	if jitter < 0 {
		jitter = 0
	}
	return &Backoff{initial: initial, max: max, factor: factor, jitter: jitter}
}

// Next returns the wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	if b.cur == 0 {
		b.cur = b.initial
	} else {
		b.cur = time.Duration(float64(b.cur) * b.factor)
	}
	if b.cur > b.max {
		b.cur = b.max
	}
	if b.jitter == 0 {
		return b.cur
	}
	delta := (rand.Float64()*2 - 1) * b.jitter * float64(b.cur)
	return b.cur + time.Duration(delta)
}

// Reset restarts the sequence after a success.
func (b *Backoff) Reset() { b.cur = 0 }
