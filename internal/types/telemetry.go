package types

// QueueTelemetry carries the ambient queue metrics that ride on push events.
// It is session-wide, not per-job; absence is a valid, expected state.
type QueueTelemetry struct {
	PendingJobsCount               int `json:"pending_jobs_count"`
	EstimatedProcessingTimeSeconds int `json:"estimated_processing_time"`
}

// ConnectionState represents the health of the push-event connection
type ConnectionState int

// Connection state constants
const (
	// ConnectionConnecting indicates a connection attempt is in progress
	ConnectionConnecting ConnectionState = iota
	// ConnectionOpen indicates the push connection is established
	ConnectionOpen
	// ConnectionDisconnected indicates the push connection is down
	ConnectionDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionConnecting:
		return "connecting"
	case ConnectionOpen:
		return "open"
	case ConnectionDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// StateChange pairs a connection state with the reason for a disconnect.
// Reason is empty unless State is ConnectionDisconnected.
type StateChange struct {
	State  ConnectionState
	Reason string
}
