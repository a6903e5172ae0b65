package transport

import (
	"math/rand"
	"time"
)

// BackoffConfig tunes the reconnect schedule after an unexpected close.
type BackoffConfig struct {
	// Base is the delay before the first reconnect attempt.
	Base time.Duration
	// Max caps the delay growth.
	Max time.Duration
	// Jitter is the random fraction (0..1) added or subtracted from each
	// delay to spread reconnect storms.
	Jitter float64
	// MaxAttempts is the attempt budget before the connection goes
	// terminal. Zero means the default; a negative value means unlimited.
	MaxAttempts int
}

const (
	defaultBackoffBase   = 500 * time.Millisecond
	defaultBackoffMax    = 30 * time.Second
	defaultBackoffJitter = 0.2
	defaultMaxAttempts   = 8
)

func (b BackoffConfig) withDefaults() BackoffConfig {
	if b.Base <= 0 {
		b.Base = defaultBackoffBase
	}
	if b.Max <= 0 {
		b.Max = defaultBackoffMax
	}
	if b.Jitter <= 0 {
		b.Jitter = defaultBackoffJitter
	}
	if b.MaxAttempts == 0 {
		b.MaxAttempts = defaultMaxAttempts
	}
	return b
}

// base delay for the given zero-based attempt: min(Base << attempt, Max).
// Non-decreasing in attempt.
func (b BackoffConfig) delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}

// delayWithJitter spreads the base delay by ±Jitter. Never negative.
func (b BackoffConfig) delayWithJitter(attempt int) time.Duration {
	d := b.delay(attempt)
	spread := float64(d) * b.Jitter
	jittered := float64(d) + (rand.Float64()*2-1)*spread
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}

// exhausted reports whether the attempt budget is spent.
func (b BackoffConfig) exhausted(attempt int) bool {
	if b.MaxAttempts < 0 {
		return false
	}
	return attempt >= b.MaxAttempts
}
