package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmvoice/jobsync/internal/types"
)

// sseServer streams the given frames to each connecting client and then
// holds the connection open until the server is closed.
func sseServer(t *testing.T, frames []string) (*httptest.Server, *int32) {
	t.Helper()

	connections := new(int32)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(connections, 1)

		if r.URL.Query().Get("token") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		// Force the buffered headers onto the wire so the client's Do()
		// returns even when no frames follow.
		flusher.Flush()

		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
			flusher.Flush()
		}

		<-r.Context().Done()
	}))

	return srv, connections
}

func testOptions(baseURL string) *Options {
	return &Options{
		BaseURL:      baseURL,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for " + msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTransport_DecodesJobUpdates(t *testing.T) {
	frames := []string{
		`{"type":"connected","data":{"user_id":7},"timestamp":"2026-03-01T12:00:00Z"}`,
		`{"type":"job_update","data":{"job_id":42,"status":"processing","progress":55,"updated_at":"2026-03-01T12:00:01Z","pending_jobs_count":3,"estimated_processing_time":300},"timestamp":"2026-03-01T12:00:01Z"}`,
		`{"type":"keepalive","data":{},"timestamp":"2026-03-01T12:00:02Z"}`,
	}
	srv, _ := sseServer(t, frames)
	defer srv.Close()

	tr := New(testOptions(srv.URL))
	defer tr.Close()

	var mu sync.Mutex
	var updates []types.JobUpdate
	unsubscribe := tr.OnJobUpdate(func(u types.JobUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})
	defer unsubscribe()

	tr.Connect(context.Background(), "test-token")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) == 1
	}, "job update")

	mu.Lock()
	defer mu.Unlock()
	u := updates[0]
	assert.Equal(t, types.JobID("42"), u.ID, "numeric job id normalizes to a string id")
	require.NotNil(t, u.Status)
	assert.Equal(t, types.JobStatusProcessing, *u.Status)
	require.NotNil(t, u.Progress)
	assert.Equal(t, 55, *u.Progress)
	require.NotNil(t, u.Telemetry)
	assert.Equal(t, 3, u.Telemetry.PendingJobsCount)
	assert.Equal(t, 300, u.Telemetry.EstimatedProcessingTimeSeconds)
}

func TestTransport_DropsMalformedFrames(t *testing.T) {
	frames := []string{
		`this is not json`,
		`{"type":"job_update","data":{"status":"processing","updated_at":"2026-03-01T12:00:01Z"}}`,          // missing job_id
		`{"type":"job_update","data":{"job_id":"9","status":"half-done","updated_at":"2026-03-01T12:00:01Z"}}`, // unknown status
		`{"type":"job_update","data":{"job_id":"9","status":"completed","updated_at":"2026-03-01T12:00:02Z"}}`,
	}
	srv, _ := sseServer(t, frames)
	defer srv.Close()

	tr := New(testOptions(srv.URL))
	defer tr.Close()

	var mu sync.Mutex
	var updates []types.JobUpdate
	tr.OnJobUpdate(func(u types.JobUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})

	tr.Connect(context.Background(), "test-token")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) == 1
	}, "the single well-formed update")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, types.JobID("9"), updates[0].ID)
	require.NotNil(t, updates[0].Status)
	assert.Equal(t, types.JobStatusCompleted, *updates[0].Status)
}

func TestTransport_StateTransitionsAndReconnect(t *testing.T) {
	srv, _ := sseServer(t, nil)

	tr := New(testOptions(srv.URL))
	defer tr.Close()

	var mu sync.Mutex
	var states []types.ConnectionState
	countState := func(want types.ConnectionState) int {
		mu.Lock()
		defer mu.Unlock()
		n := 0
		for _, s := range states {
			if s == want {
				n++
			}
		}
		return n
	}
	tr.OnStateChange(func(c types.StateChange) {
		mu.Lock()
		states = append(states, c.State)
		mu.Unlock()
	})

	tr.Connect(context.Background(), "test-token")

	waitFor(t, func() bool {
		return tr.State().State == types.ConnectionOpen
	}, "open state")

	// Kill the server; the transport should report the drop and keep retrying.
	srv.CloseClientConnections()
	srv.Close()

	waitFor(t, func() bool {
		return tr.State().State != types.ConnectionOpen
	}, "disconnect")

	waitFor(t, func() bool {
		return countState(types.ConnectionConnecting) >= 2
	}, "reconnect attempt")

	assert.GreaterOrEqual(t, countState(types.ConnectionOpen), 1)
	assert.GreaterOrEqual(t, countState(types.ConnectionDisconnected), 1)
}

func TestTransport_CloseIsIdempotent(t *testing.T) {
	srv, _ := sseServer(t, nil)
	defer srv.Close()

	tr := New(testOptions(srv.URL))
	tr.Connect(context.Background(), "test-token")

	waitFor(t, func() bool {
		return tr.State().State == types.ConnectionOpen
	}, "open state")

	tr.Close()
	tr.Close()

	waitFor(t, func() bool {
		s := tr.State()
		return s.State == types.ConnectionDisconnected && s.Reason == "closed"
	}, "closed state")
}

func TestTransport_ConnectSupersedesPriorConnection(t *testing.T) {
	srv, connections := sseServer(t, nil)
	defer srv.Close()

	tr := New(testOptions(srv.URL))
	defer tr.Close()

	tr.Connect(context.Background(), "token-one")
	waitFor(t, func() bool {
		return tr.State().State == types.ConnectionOpen
	}, "first connection")

	tr.Connect(context.Background(), "token-two")
	waitFor(t, func() bool {
		return atomic.LoadInt32(connections) >= 2 && tr.State().State == types.ConnectionOpen
	}, "superseding connection")
}
