package queue

import "time"

const maxRetryDelay = time.Hour

// retryDelay doubles the base delay for every attempt already made, capped so
// a long-failing job still retries at least hourly.
func retryDelay(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}
