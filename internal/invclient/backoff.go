package invclient

import (
	"math/rand"
	"time"
)

// backoffDelay doubles the base per attempt up to the cap, then applies
// symmetric jitter of up to ±25% so concurrent retries spread out.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	jitter := time.Duration(float64(d) * 0.25 * (2*rand.Float64() - 1))
	return d + jitter
}
