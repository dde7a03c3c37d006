package jobsync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmvoice/jobsync/config"
)

// mockService serves both the snapshot endpoint and the push stream so a
// whole session can run against it.
type mockService struct {
	mu       sync.Mutex
	snapshot string
	frames   chan string
}

func newMockService() *mockService {
	return &mockService{
		snapshot: `[]`,
		frames:   make(chan string, 16),
	}
}

func (m *mockService) setSnapshot(body string) {
	m.mu.Lock()
	m.snapshot = body
	m.mu.Unlock()
}

func (m *mockService) push(frame string) {
	m.frames <- frame
}

func (m *mockService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		body := m.snapshot
		m.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/realtime/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case frame := <-m.frames:
				fmt.Fprintf(w, "data: %s\n\n", frame)
				flusher.Flush()
			}
		}
	})
	return mux
}

func testSettings(baseURL string) Settings {
	s := config.DefaultSettings()
	s.ServerAddress = baseURL
	s.ReconnectInitialDelay = 10 * time.Millisecond
	s.ReconnectMaxDelay = 50 * time.Millisecond
	return s
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

func TestSession_EndToEnd(t *testing.T) {
	service := newMockService()
	srv := httptest.NewServer(service.handler())
	defer srv.Close()

	service.setSnapshot(`[{"id": 1, "status": "queued", "queue_position": 2, "updated_at": "2026-03-01T12:00:00Z", "created_at": "2026-03-01T11:59:00Z"}]`)

	session, err := NewSession(testSettings(srv.URL), "test-token")
	require.NoError(t, err)
	defer session.Close()

	var mu sync.Mutex
	var latest []Job
	unsubscribe := session.Store.Subscribe(func(jobs []Job) {
		mu.Lock()
		latest = jobs
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, session.Start(context.Background()))

	// The mount refresh lands the snapshot.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 1
	}, "snapshot to land")

	mu.Lock()
	assert.Equal(t, JobStatusQueued, latest[0].Status)
	mu.Unlock()

	// A push delta advances the job through the pipeline.
	service.push(`{"type":"job_update","data":{"job_id":1,"status":"processing","progress":70,"updated_at":"2026-03-01T12:00:05Z"},"timestamp":"2026-03-01T12:00:05Z"}`)

	waitFor(t, func() bool {
		job, ok := session.Store.GetByID("1")
		return ok && job.Status == JobStatusProcessing
	}, "delta to apply")

	job, _ := session.Store.GetByID("1")
	assert.Equal(t, 70, job.Progress)

	// A delta for a job the session never fetched materializes it.
	service.push(`{"type":"job_update","data":{"job_id":"surprise","status":"completed","updated_at":"2026-03-01T12:00:06Z"},"timestamp":"2026-03-01T12:00:06Z"}`)

	waitFor(t, func() bool {
		_, ok := session.Store.GetByID("surprise")
		return ok
	}, "unseen job to materialize")

	// Close evicts the session's jobs.
	session.Close()
	assert.Empty(t, session.Store.GetAll())
}

func TestSession_FetchFailureKeepsLastKnownJobs(t *testing.T) {
	service := newMockService()
	srv := httptest.NewServer(service.handler())
	defer srv.Close()

	service.setSnapshot(`[{"id": 1, "status": "processing", "updated_at": "2026-03-01T12:00:00Z"}]`)

	session, err := NewSession(testSettings(srv.URL), "test-token")
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Start(context.Background()))
	waitFor(t, func() bool {
		return len(session.Store.GetAll()) == 1
	}, "snapshot to land")

	service.setSnapshot(`{"error": "database unavailable"`) // truncated JSON

	err = session.Coordinator.Refresh(context.Background(), true)
	require.Error(t, err)
	assert.Len(t, session.Store.GetAll(), 1, "stale-but-valid beats empty")
}
