package worker

import "time"

// Backoff returns the delay before retry number attempts (1-based). It
// doubles per failed cycle up to max and never drops below base, so
// retries always make forward progress without busy-spinning.
func Backoff(base, max time.Duration, attempts int) time.Duration {
	if base <= 0 {
		base = 30 * time.Second
	}
	if max < base {
		max = base
	}
	if attempts < 1 {
		attempts = 1
	}

	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
