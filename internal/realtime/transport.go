// Package realtime maintains the push-event connection to the notification
// service. It owns exactly one connection per session, decodes raw frames
// into typed events, reconnects with bounded jittered backoff, and reports
// connection health. It never mutates shared job state itself; it only
// invokes registered callbacks.
package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/filmvoice/jobsync/internal/logger"
	"github.com/filmvoice/jobsync/internal/types"
)

// EventsPath is the server-sent-events endpoint on the notification service
const EventsPath = "/realtime/events"

// Frame type names on the wire
const (
	frameConnected = "connected"
	frameJobUpdate = "job_update"
	frameKeepalive = "keepalive"
)

// JobUpdateHandler receives decoded job updates
type JobUpdateHandler func(types.JobUpdate)

// StateHandler receives connection state transitions
type StateHandler func(types.StateChange)

// Options contains configuration options for the transport
type Options struct {
	// BaseURL is the base URL of the notification service
	BaseURL string

	// InitialDelay is the first reconnection backoff delay
	InitialDelay time.Duration

	// MaxDelay caps the reconnection backoff
	MaxDelay time.Duration

	// HTTPClient overrides the HTTP client, mainly for tests
	HTTPClient *http.Client
}

// DefaultOptions returns the default transport options
func DefaultOptions() *Options {
	return &Options{
		BaseURL:      "http://localhost:8000",
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Transport owns the push-event connection for one session
type Transport struct {
	opts Options

	mu            sync.Mutex
	state         types.StateChange
	jobHandlers   map[string]JobUpdateHandler
	stateHandlers map[string]StateHandler
	cancel        context.CancelFunc
	// generation identifies the current Connect call; state writes from a
	// superseded connection loop are discarded.
	generation uint64
}

// New creates a transport with the given options
func New(opts *Options) *Transport {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	return &Transport{
		opts:          *opts,
		state:         types.StateChange{State: types.ConnectionDisconnected, Reason: "not connected"},
		jobHandlers:   make(map[string]JobUpdateHandler),
		stateHandlers: make(map[string]StateHandler),
	}
}

// OnJobUpdate registers a handler for decoded job updates and returns a
// disposer. The disposer is idempotent.
func (t *Transport) OnJobUpdate(h JobUpdateHandler) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := uuid.NewString()
	t.jobHandlers[key] = h

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.jobHandlers, key)
	}
}

// OnStateChange registers a handler for connection state transitions and
// returns a disposer. The disposer is idempotent.
func (t *Transport) OnStateChange(h StateHandler) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := uuid.NewString()
	t.stateHandlers[key] = h

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.stateHandlers, key)
	}
}

// State returns the current connection state
func (t *Transport) State() types.StateChange {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect establishes the push connection and keeps it alive until Close is
// called or the context is cancelled. A second Connect supersedes the first:
// the prior connection is torn down so one session never holds two.
func (t *Transport) Connect(ctx context.Context, token string) {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.generation++
	gen := t.generation
	t.mu.Unlock()

	go t.run(runCtx, token, gen)
}

// Close tears down the connection. Safe to call multiple times.
func (t *Transport) Close() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// run owns the reconnection loop for one Connect call
func (t *Transport) run(ctx context.Context, token string, gen uint64) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.opts.InitialDelay
	policy.MaxInterval = t.opts.MaxDelay
	policy.MaxElapsedTime = 0 // retry until closed

	for {
		t.setState(gen, types.StateChange{State: types.ConnectionConnecting})

		err := t.stream(ctx, token, policy, gen)
		if ctx.Err() != nil {
			t.setState(gen, types.StateChange{State: types.ConnectionDisconnected, Reason: "closed"})
			return
		}

		reason := "connection closed by server"
		if err != nil {
			reason = err.Error()
		}
		t.setState(gen, types.StateChange{State: types.ConnectionDisconnected, Reason: reason})

		wait := policy.NextBackOff()
		logger.WarnWithFields("Push connection lost, reconnecting", map[string]interface{}{
			"reason":   reason,
			"retry_in": wait.String(),
		})

		select {
		case <-ctx.Done():
			t.setState(gen, types.StateChange{State: types.ConnectionDisconnected, Reason: "closed"})
			return
		case <-time.After(wait):
		}
	}
}

// stream opens one connection and reads frames until it breaks
func (t *Transport) stream(ctx context.Context, token string, policy *backoff.ExponentialBackOff, gen uint64) error {
	// The browser EventSource API cannot set headers, so the deployed
	// service authenticates the stream via a query parameter.
	url := fmt.Sprintf("%s%s?token=%s", t.opts.BaseURL, EventsPath, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("error building stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("error opening stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected stream status: %d", resp.StatusCode)
	}

	policy.Reset()
	t.setState(gen, types.StateChange{State: types.ConnectionOpen})

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		// A blank line terminates one event.
		if line == "" {
			if data.Len() > 0 {
				t.dispatch(data.String())
				data.Reset()
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue // comment / heartbeat padding
		}
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			data.WriteString(strings.TrimPrefix(value, " "))
			continue
		}
		// event:/id:/retry: fields are unused by this protocol.
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stream: %w", err)
	}
	return nil
}

// frame is the envelope every push message arrives in
type frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// jobUpdateWire is the loosely-typed job_update payload as the server sends
// it. It is normalized into types.JobUpdate before leaving this package.
type jobUpdateWire struct {
	JobID                   types.JobID `json:"job_id"`
	Status                  *string     `json:"status"`
	Progress                *int        `json:"progress"`
	ErrorMessage            *string     `json:"error_message"`
	UpdatedAt               string      `json:"updated_at"`
	PendingJobsCount        *int        `json:"pending_jobs_count"`
	EstimatedProcessingTime *int        `json:"estimated_processing_time"`
}

// dispatch decodes one frame and routes it. Malformed frames are logged and
// dropped; they never reach subscribers and never break the connection.
func (t *Transport) dispatch(raw string) {
	var f frame
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		logger.Warnf("Dropping malformed push frame: %v", err)
		return
	}

	switch f.Type {
	case frameConnected, frameKeepalive:
		logger.Debugf("Push frame: %s", f.Type)
	case frameJobUpdate:
		update, err := decodeJobUpdate(f.Data)
		if err != nil {
			logger.Warnf("Dropping malformed job update: %v", err)
			return
		}
		t.fanOutJobUpdate(update)
	default:
		logger.Debugf("Ignoring unknown push frame type: %s", f.Type)
	}
}

// decodeJobUpdate normalizes a loosely-typed payload into the closed
// JobUpdate type. Loose data never leaks past this boundary.
func decodeJobUpdate(data json.RawMessage) (types.JobUpdate, error) {
	var wire jobUpdateWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return types.JobUpdate{}, fmt.Errorf("error decoding job update: %w", err)
	}

	update := types.JobUpdate{
		ID:           wire.JobID,
		Progress:     wire.Progress,
		ErrorMessage: wire.ErrorMessage,
	}

	if wire.Status != nil {
		status, err := types.ParseJobStatus(*wire.Status)
		if err != nil {
			return types.JobUpdate{}, err
		}
		update.Status = &status
	}

	updatedAt, err := time.Parse(time.RFC3339, wire.UpdatedAt)
	if err != nil {
		return types.JobUpdate{}, fmt.Errorf("invalid updated_at %q: %w", wire.UpdatedAt, err)
	}
	update.UpdatedAt = updatedAt

	if wire.PendingJobsCount != nil || wire.EstimatedProcessingTime != nil {
		telemetry := &types.QueueTelemetry{}
		if wire.PendingJobsCount != nil {
			telemetry.PendingJobsCount = *wire.PendingJobsCount
		}
		if wire.EstimatedProcessingTime != nil {
			telemetry.EstimatedProcessingTimeSeconds = *wire.EstimatedProcessingTime
		}
		update.Telemetry = telemetry
	}

	if err := update.Validate(); err != nil {
		return types.JobUpdate{}, err
	}
	return update, nil
}

func (t *Transport) fanOutJobUpdate(update types.JobUpdate) {
	t.mu.Lock()
	handlers := make([]JobUpdateHandler, 0, len(t.jobHandlers))
	for _, h := range t.jobHandlers {
		handlers = append(handlers, h)
	}
	t.mu.Unlock()

	for _, h := range handlers {
		h(update)
	}
}

func (t *Transport) setState(gen uint64, next types.StateChange) {
	t.mu.Lock()
	if gen != t.generation || t.state == next {
		t.mu.Unlock()
		return
	}
	t.state = next
	handlers := make([]StateHandler, 0, len(t.stateHandlers))
	for _, h := range t.stateHandlers {
		handlers = append(handlers, h)
	}
	t.mu.Unlock()

	for _, h := range handlers {
		h(next)
	}
}
