// Package eta provides the pure presentation helpers: queue wait estimation
// and relative time formatting. Nothing in this package performs I/O or
// mutates shared state, so every function is safe to call on each render.
package eta

import (
	"github.com/filmvoice/jobsync/internal/types"
)

// DefaultWaitMinutes is returned whenever telemetry is missing or unusable.
// The UI never shows a zero or blank wait time.
const DefaultWaitMinutes = 60

// EstimateWaitMinutes converts queue telemetry into an estimated wait in
// minutes, rounded up to the next whole minute.
func EstimateWaitMinutes(t *types.QueueTelemetry) int {
	if t == nil || t.PendingJobsCount <= 0 || t.EstimatedProcessingTimeSeconds <= 0 {
		return DefaultWaitMinutes
	}

	seconds := t.PendingJobsCount * t.EstimatedProcessingTimeSeconds
	return (seconds + 59) / 60
}
