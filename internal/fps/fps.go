// Package fps derives a frames-per-second figure from a single inference latency.
package fps

import (
	"math"
	"time"
)

// FromLatency returns floor(1000 / latency in milliseconds).
// The latency is truncated to whole milliseconds first on purpose, matching
// a millisecond wall clock: 33.9ms counts as 33ms and reads 30 fps.
// It reports false for a latency under one millisecond, in which case the
// caller should keep its previous value rather than update.
func FromLatency(latency time.Duration) (int, bool) {
	ms := latency.Milliseconds()
	if ms <= 0 {
		return 0, false
	}
	return int(math.Floor(1000 / float64(ms))), true
}
