package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Doubles(t *testing.T) {
	b := NewBackoff(5, WithJitter(0))

	assert.Equal(t, 100*time.Millisecond, b.NextDelay(0))
	assert.Equal(t, 200*time.Millisecond, b.NextDelay(1))
	assert.Equal(t, 400*time.Millisecond, b.NextDelay(2))
	assert.Equal(t, 5, b.MaxAttempts())
}

func TestBackoff_CapsAtMaxDelay(t *testing.T) {
	b := NewBackoff(-1, WithJitter(0), WithInitialDelay(time.Second), WithMaxDelay(5*time.Second))

	assert.Equal(t, 4*time.Second, b.NextDelay(2))
	assert.Equal(t, 5*time.Second, b.NextDelay(3))
	assert.Equal(t, 5*time.Second, b.NextDelay(40))
}

func TestBackoff_Jitter(t *testing.T) {
	tests := []struct {
		name string
		rand float64
		want time.Duration
	}{
		{"low", 0, 900 * time.Millisecond},
		{"mid", 0.5, time.Second},
		{"high", 1, 1100 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackoff(1,
				WithInitialDelay(time.Second),
				WithJitter(0.1),
				WithRand(func() float64 { return tt.rand }),
			)
			assert.InDelta(t, float64(tt.want), float64(b.NextDelay(0)), float64(time.Millisecond))
		})
	}
}

func TestBackoff_Factor(t *testing.T) {
	b := NewBackoff(3, WithJitter(0), WithFactor(3), WithInitialDelay(10*time.Millisecond))
	assert.Equal(t, 90*time.Millisecond, b.NextDelay(2))
}
