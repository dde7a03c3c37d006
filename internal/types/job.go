// Package types defines the entities shared across the jobsync subsystem.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobID is the opaque identifier of a job. Upstream sources emit ids as
// either JSON strings or bare numbers; both normalize to the same JobID.
type JobID string

// UnmarshalJSON implements the json.Unmarshaler interface for JobID
func (id *JobID) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*id = JobID(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("invalid job id: %s", string(data))
	}
	*id = JobID(num.String())
	return nil
}

// JobStatus represents the current state of a job in the pipeline
type JobStatus int

// Job status constants
const (
	// JobStatusUnknown represents an unknown or invalid job status
	JobStatusUnknown JobStatus = iota
	// JobStatusDraft indicates the job has been configured but not submitted
	JobStatusDraft
	// JobStatusPending indicates the job is waiting to be accepted
	JobStatusPending
	// JobStatusQueued indicates the job is waiting in the processing queue
	JobStatusQueued
	// JobStatusProcessing indicates the job is currently being processed
	JobStatusProcessing
	// JobStatusCompleted indicates the job has finished successfully
	JobStatusCompleted
	// JobStatusFailed indicates the job has failed to complete
	JobStatusFailed
	// JobStatusCancelled indicates the job has been cancelled
	JobStatusCancelled
)

var jobStatusNames = []string{
	"unknown",
	"draft",
	"pending",
	"queued",
	"processing",
	"completed",
	"failed",
	"cancelled",
}

// ParseJobStatus converts a string representation of a job status to JobStatus type
func ParseJobStatus(str string) (JobStatus, error) {
	for i, status := range jobStatusNames {
		if status == str {
			return JobStatus(i), nil
		}
	}

	return JobStatusUnknown, fmt.Errorf("invalid job status: %s", str)
}

func (s JobStatus) String() string {
	if s < 0 || int(s) >= len(jobStatusNames) {
		return jobStatusNames[JobStatusUnknown]
	}
	return jobStatusNames[s]
}

// IsTerminal reports whether the status admits no further transitions
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// MarshalJSON implements the json.Marshaler interface for JobStatus
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for JobStatus
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status, err := ParseJobStatus(str)
	if err != nil {
		return err
	}

	*s = status
	return nil
}

// Job represents one asynchronous unit of work tracked for the session.
//
// UpdatedAt is the authoritative recency marker used by the store's merge
// policy. The display metadata fields are opaque to the subsystem and pass
// through unmodified.
type Job struct {
	ID                   JobID     `json:"id"`
	Status               JobStatus `json:"status"`
	Progress             int       `json:"progress,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
	QueuePosition        int       `json:"queue_position,omitempty"`
	EstimatedTimeSeconds int       `json:"estimated_time_seconds,omitempty"`
	ErrorMessage         string    `json:"error_message,omitempty"`

	// Display metadata
	MovieID        string `json:"movie_id,omitempty"`
	MovieTitle     string `json:"movie_title,omitempty"`
	PosterURL      string `json:"poster_url,omitempty"`
	BackdropURL    string `json:"backdrop_url,omitempty"`
	ResultVideoURL string `json:"result_video_url,omitempty"`
	ThumbnailURL   string `json:"thumbnail_url,omitempty"`
}

// JobUpdate is a partial update to a single job carried by a push event.
// Nil fields were absent from the payload and leave the local value alone.
type JobUpdate struct {
	ID           JobID
	Status       *JobStatus
	Progress     *int
	ErrorMessage *string
	UpdatedAt    time.Time
	Telemetry    *QueueTelemetry
}

// Validate checks that the update is safe to hand to the store
func (u *JobUpdate) Validate() error {
	if u == nil {
		return fmt.Errorf("job update is required")
	}
	if u.ID == "" {
		return fmt.Errorf("job_id is required")
	}
	if u.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}
