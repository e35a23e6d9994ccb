package retry

import (
	"math"
	"math/rand"
	"time"
)

// Backoff grows the delay geometrically between attempts, capped at
// maxDelay, with optional symmetric jitter.
type Backoff struct {
	initial     time.Duration
	maxDelay    time.Duration
	factor      float64
	maxAttempts int

	// jitter is a fraction: 0.1 spreads delays over +/-10%.
	jitter float64
	rand   func() float64
}

type Option func(*Backoff)

func WithInitialDelay(d time.Duration) Option { return func(b *Backoff) { b.initial = d } }

func WithMaxDelay(d time.Duration) Option { return func(b *Backoff) { b.maxDelay = d } }

func WithFactor(f float64) Option { return func(b *Backoff) { b.factor = f } }

func WithJitter(j float64) Option { return func(b *Backoff) { b.jitter = j } }

// WithRand replaces the jitter source. Tests use it for determinism.
func WithRand(f func() float64) Option { return func(b *Backoff) { b.rand = f } }

// NewBackoff returns a strategy allowing maxAttempts retries after the first
// attempt. A negative value retries until the context ends.
func NewBackoff(maxAttempts int, opts ...Option) *Backoff {
	b := &Backoff{
		initial:     100 * time.Millisecond,
		maxDelay:    30 * time.Second,
		factor:      2,
		maxAttempts: maxAttempts,
		jitter:      0.1,
		rand:        rand.Float64,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NextDelay returns the wait before retry number attempt (zero-based).
func (b *Backoff) NextDelay(attempt int) time.Duration {
	d := float64(b.initial) * math.Pow(b.factor, float64(attempt))
	if d > float64(b.maxDelay) {
		d = float64(b.maxDelay)
	}
	if b.jitter > 0 {
		d *= 1 + b.jitter*(b.rand()*2-1)
	}
	return time.Duration(d)
}

func (b *Backoff) MaxAttempts() int { return b.maxAttempts }
