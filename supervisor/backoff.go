package supervisor

import (
	"math"
	"math/rand"
	"time"
)

// Backoff describes the retry delays of a device loop.
type Backoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Multiplier scales the delay after every failed attempt. Values below
	// 1 are treated as 1.
	Multiplier float64
	// Max caps the delay. Zero means no cap.
	Max time.Duration
	// Jitter scales every delay by a random factor in [0.5, 1.5).
	Jitter bool
}

// DefaultBackoff is the retry policy used when none is configured.
var DefaultBackoff = Backoff{
	Initial:    500 * time.Millisecond,
	Multiplier: 2,
	Max:        30 * time.Second,
	Jitter:     true,
}

// Delay returns the retry delay for the given 1-based failed attempt.
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(b.Initial) * math.Pow(multiplier, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}

	if b.Jitter {
		f := 0.5
		if rng != nil {
			f += rng.Float64()
		}
		delay *= f
	}

	return time.Duration(delay)
}
