package core

import "time"

// =============================================================================
// Idle Backoff
// =============================================================================

// IdleBackoff defines how long an idle worker waits before re-checking its
// queues when it found no work. A wakeup signal from a new dispatch cuts the
// wait short.
type IdleBackoff struct {
	// Initial is the wait after the first empty poll.
	Initial time.Duration

	// Max caps the wait between polls.
	Max time.Duration

	// Ratio is the multiplier applied after each consecutive empty poll.
	// For example, with Initial=50µs and Ratio=2.0:
	// - Poll 1 wait: 50µs
	// - Poll 2 wait: 100µs
	// - Poll 3 wait: 200µs (capped by Max)
	Ratio float64
}

// DefaultIdleBackoff returns the backoff used when none is configured.
func DefaultIdleBackoff() IdleBackoff {
	return IdleBackoff{
		Initial: 50 * time.Microsecond,
		Max:     2 * time.Millisecond,
		Ratio:   2.0,
	}
}

func (b IdleBackoff) normalized() IdleBackoff {
	def := DefaultIdleBackoff()
	if b.Initial <= 0 {
		b.Initial = def.Initial
	}
	if b.Max < b.Initial {
		b.Max = max(def.Max, b.Initial)
	}
	if b.Ratio < 1 {
		b.Ratio = def.Ratio
	}
	return b
}

// delay returns the wait for the given consecutive empty poll.
// attempt is 0-indexed (0 = first empty poll).
func (b IdleBackoff) delay(attempt int) time.Duration {
	d := float64(b.Initial)
	for i := 0; i < attempt; i++ {
		d *= b.Ratio
		if d >= float64(b.Max) {
			return b.Max
		}
	}
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	return time.Duration(d)
}
