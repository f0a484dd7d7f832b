package gateway

import (
	"math/rand"
	"time"
)

const (
	backoffInitial    = 250 * time.Millisecond
	backoffMax        = 2 * time.Second
	backoffMultiplier = 2.0
)

// backoff implements truncated exponential backoff with jitter. The cap
// is deliberately small: the whole retry budget must finish well inside
// one schedule interval.
type backoff struct {
	current time.Duration
	max     time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{current: initial, max: max}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	// Advance for next call.
	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}
