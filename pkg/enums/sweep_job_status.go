package enums

import "fmt"

// SweepJobStatus tracks a queued sweep operation.
type SweepJobStatus string

const (
	SweepJobStatusPending    SweepJobStatus = "pending"
	SweepJobStatusProcessing SweepJobStatus = "processing"
	SweepJobStatusCompleted  SweepJobStatus = "completed"
	SweepJobStatusFailed     SweepJobStatus = "failed"
	SweepJobStatusDead       SweepJobStatus = "dead"
)

var validSweepJobStatuses = []SweepJobStatus{
	SweepJobStatusPending,
	SweepJobStatusProcessing,
	SweepJobStatusCompleted,
	SweepJobStatusFailed,
	SweepJobStatusDead,
}

// String implements fmt.Stringer.
func (s SweepJobStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SweepJobStatus) IsValid() bool {
	for _, candidate := range validSweepJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsLive reports whether the job still owns its invoice; at most one live job
// exists per invoice. Failed jobs are live because they are requeued once
// their backoff elapses.
func (s SweepJobStatus) IsLive() bool {
	return s == SweepJobStatusPending || s == SweepJobStatusProcessing || s == SweepJobStatusFailed
}

// ParseSweepJobStatus converts raw input into a SweepJobStatus.
func ParseSweepJobStatus(value string) (SweepJobStatus, error) {
	for _, candidate := range validSweepJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sweep job status %q", value)
}
