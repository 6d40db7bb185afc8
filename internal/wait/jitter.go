package wait

import "time"

// jitteredDelay spreads interval by ±ratio using r in [0, 1), then caps the
// result at remaining.
func jitteredDelay(interval time.Duration, ratio, r float64, remaining time.Duration) time.Duration {
	delay := interval
	if ratio > 0 {
		spread := float64(interval) * ratio
		delay = interval + time.Duration((2*r-1)*spread)
	}
	if delay > remaining {
		delay = remaining
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}
