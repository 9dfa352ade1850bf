package queue

import (
	"testing"
	"time"
)

func TestRetryDelayDoublesPerAttempt(t *testing.T) {
	base := 30 * time.Second
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{5, 8 * time.Minute},
	}
	for _, tc := range cases {
		if got := retryDelay(base, tc.attempts); got != tc.want {
			t.Fatalf("retryDelay(%d) = %s, want %s", tc.attempts, got, tc.want)
		}
	}
}

func TestRetryDelayCapped(t *testing.T) {
	if got := retryDelay(30*time.Second, 30); got != maxRetryDelay {
		t.Fatalf("expected cap %s, got %s", maxRetryDelay, got)
	}
}
