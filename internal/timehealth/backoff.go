package timehealth

import (
	"math"
	"math/rand"
	"time"
)

// Backoff spaces out retries after failed checks
type Backoff struct {
	Initial    time.Duration // Delay after the first failure (default: 15s)
	Multiplier float64       // Growth per further failure (default: 2.0)
	Jitter     bool          // Add up to 20% random delay
}

// DefaultBackoff returns default retry backoff configuration
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    15 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Delay returns how long to wait after the given number of consecutive
// failures, never more than max. Zero failures means no backoff.
func (b Backoff) Delay(failures int, max time.Duration) time.Duration {
	if failures <= 0 {
		return 0
	}

	// delay = initial * (multiplier ^ (failures - 1))
	delay := float64(b.Initial) * math.Pow(b.Multiplier, float64(failures-1))

	if b.Jitter {
		delay += delay * 0.2 * rand.Float64()
	}

	if delay > float64(max) || math.IsInf(delay, 0) {
		return max
	}
	return time.Duration(delay)
}
