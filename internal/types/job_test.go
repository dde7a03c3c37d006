package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseJobStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    JobStatus
		wantErr bool
	}{
		{name: "draft", input: "draft", want: JobStatusDraft},
		{name: "pending", input: "pending", want: JobStatusPending},
		{name: "queued", input: "queued", want: JobStatusQueued},
		{name: "processing", input: "processing", want: JobStatusProcessing},
		{name: "completed", input: "completed", want: JobStatusCompleted},
		{name: "failed", input: "failed", want: JobStatusFailed},
		{name: "cancelled", input: "cancelled", want: JobStatusCancelled},
		{name: "unknown string", input: "exploded", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJobStatus(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseJobStatus(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseJobStatus(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	nonTerminal := []JobStatus{JobStatusUnknown, JobStatusDraft, JobStatusPending, JobStatusQueued, JobStatusProcessing}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestJobID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    JobID
		wantErr bool
	}{
		{name: "string id", payload: `"abc-123"`, want: JobID("abc-123")},
		{name: "numeric id", payload: `42`, want: JobID("42")},
		{name: "numeric string id equals numeric id", payload: `"42"`, want: JobID("42")},
		{name: "object", payload: `{"id":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id JobID
			err := json.Unmarshal([]byte(tt.payload), &id)
			if (err != nil) != tt.wantErr {
				t.Errorf("unmarshal %s error = %v, wantErr %v", tt.payload, err, tt.wantErr)
				return
			}
			if !tt.wantErr && id != tt.want {
				t.Errorf("unmarshal %s = %q, want %q", tt.payload, id, tt.want)
			}
		})
	}
}

func TestJob_StatusJSONRoundTrip(t *testing.T) {
	job := Job{
		ID:        "7",
		Status:    JobStatusProcessing,
		Progress:  40,
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"status":"processing"`) {
		t.Errorf("status should marshal as its string name, got %s", data)
	}

	var decoded Job
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Status != JobStatusProcessing {
		t.Errorf("decoded status = %v, want processing", decoded.Status)
	}
}

func TestJobUpdate_Validate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		update  *JobUpdate
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid update",
			update: &JobUpdate{ID: "1", UpdatedAt: now},
		},
		{
			name:    "missing id",
			update:  &JobUpdate{UpdatedAt: now},
			wantErr: true,
			errMsg:  "job_id is required",
		},
		{
			name:    "missing updated_at",
			update:  &JobUpdate{ID: "1"},
			wantErr: true,
			errMsg:  "updated_at is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.update.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && err != nil && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error message = %v, want to contain %v", err, tt.errMsg)
			}
		})
	}
}
