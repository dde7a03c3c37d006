// Package jobsync is the public surface of the job synchronization
// subsystem. It re-exports the internal types consumers need and wires the
// transport, store and fetch coordinator into a per-session facade.
package jobsync

import (
	"context"

	"github.com/filmvoice/jobsync/config"
	"github.com/filmvoice/jobsync/internal/coordinator"
	"github.com/filmvoice/jobsync/internal/eta"
	"github.com/filmvoice/jobsync/internal/logger"
	"github.com/filmvoice/jobsync/internal/realtime"
	"github.com/filmvoice/jobsync/internal/store"
	"github.com/filmvoice/jobsync/internal/types"
	"github.com/filmvoice/jobsync/pkg/api/v1/client"
)

// Public aliases for the internal types.
type (
	// Job represents one asynchronous unit of work tracked for the session
	Job = types.Job
	// JobID is the opaque identifier of a job
	JobID = types.JobID
	// JobStatus represents the current state of a job in the pipeline
	JobStatus = types.JobStatus
	// JobUpdate is a partial update to a single job carried by a push event
	JobUpdate = types.JobUpdate
	// QueueTelemetry carries ambient queue metrics riding on push events
	QueueTelemetry = types.QueueTelemetry
	// ConnectionState represents the health of the push connection
	ConnectionState = types.ConnectionState
	// StateChange pairs a connection state with a disconnect reason
	StateChange = types.StateChange

	// Store is the session's reconciliation engine
	Store = store.Store
	// Transport owns the push-event connection
	Transport = realtime.Transport
	// Coordinator guards snapshot fetches
	Coordinator = coordinator.Coordinator
	// Settings holds the tuning knobs for one session
	Settings = config.Settings
)

// Job status constants.
const (
	JobStatusUnknown    = types.JobStatusUnknown
	JobStatusDraft      = types.JobStatusDraft
	JobStatusPending    = types.JobStatusPending
	JobStatusQueued     = types.JobStatusQueued
	JobStatusProcessing = types.JobStatusProcessing
	JobStatusCompleted  = types.JobStatusCompleted
	JobStatusFailed     = types.JobStatusFailed
	JobStatusCancelled  = types.JobStatusCancelled
)

// Connection state constants.
const (
	ConnectionConnecting   = types.ConnectionConnecting
	ConnectionOpen         = types.ConnectionOpen
	ConnectionDisconnected = types.ConnectionDisconnected
)

// ParseJobStatus converts a status string into the closed enum
var ParseJobStatus = types.ParseJobStatus

// Pure presentation helpers.
var (
	// EstimateWaitMinutes converts queue telemetry into an estimated wait
	EstimateWaitMinutes = eta.EstimateWaitMinutes
	// FormatRelativeTime renders a timestamp as a bucketed "ago" string
	FormatRelativeTime = eta.FormatRelativeTime
	// FormatRelativeTimestamp parses and renders an RFC 3339 timestamp
	FormatRelativeTimestamp = eta.FormatRelativeTimestamp
)

// DefaultWaitMinutes is the estimator's fallback
const DefaultWaitMinutes = eta.DefaultWaitMinutes

// UnknownTime is the formatter's sentinel for unusable timestamps
const UnknownTime = eta.UnknownTime

// Session bundles one authenticated user's view of their jobs: the single
// push connection, the canonical store, and the fetch coordinator.
type Session struct {
	Store       *Store
	Transport   *Transport
	Coordinator *Coordinator

	token          string
	unbind         func()
	stopForwarding func()
}

// NewSession wires a session from settings. Nothing touches the network
// until Start is called.
func NewSession(settings Settings, token string) (*Session, error) {
	apiClient, err := client.NewClient(&client.Options{
		BaseURL:   settings.ServerAddress,
		AuthToken: token,
	})
	if err != nil {
		return nil, err
	}

	st := store.New()
	tr := realtime.New(&realtime.Options{
		BaseURL:      settings.ServerAddress,
		InitialDelay: settings.ReconnectInitialDelay,
		MaxDelay:     settings.ReconnectMaxDelay,
	})
	co := coordinator.New(apiClient, st, &coordinator.Options{
		MinInterval:     settings.RefreshMinInterval,
		RetentionWindow: settings.RetentionWindow,
	})

	s := &Session{
		Store:       st,
		Transport:   tr,
		Coordinator: co,
		token:       token,
	}
	s.unbind = co.BindTransport(tr)
	s.stopForwarding = tr.OnJobUpdate(func(u JobUpdate) {
		// The transport already filtered malformed updates; the store is
		// left untouched if one slips through.
		if err := st.ApplyDelta(u); err != nil {
			logger.Warnf("Rejected push delta: %v", err)
		}
	})
	return s, nil
}

// Start opens the push connection and performs the mount refresh
func (s *Session) Start(ctx context.Context) error {
	s.Transport.Connect(ctx, s.token)
	return s.Coordinator.Refresh(ctx, false)
}

// Close tears the session down and evicts its jobs, as on logout. Safe to
// call multiple times.
func (s *Session) Close() {
	s.unbind()
	s.stopForwarding()
	s.Transport.Close()
	s.Store.Reset()
}
