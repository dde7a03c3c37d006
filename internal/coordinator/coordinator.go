// Package coordinator guards snapshot fetches against redundant refreshes.
// Multiple consumers may ask for the job list at once; the coordinator
// collapses those into a single fetch, debounces repeat calls, and feeds
// successful snapshots into the store.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/filmvoice/jobsync/internal/logger"
	"github.com/filmvoice/jobsync/internal/realtime"
	"github.com/filmvoice/jobsync/internal/store"
	"github.com/filmvoice/jobsync/internal/types"
)

// Fetcher pulls the session's job snapshot from the backend
type Fetcher interface {
	GetJobs(ctx context.Context) ([]types.Job, error)
}

// StateSource exposes connection state transitions, as the realtime
// transport does
type StateSource interface {
	OnStateChange(realtime.StateHandler) func()
}

// Options contains configuration options for the coordinator
type Options struct {
	// MinInterval is the debounce window: a non-forced Refresh within this
	// interval of the last successful fetch is a no-op
	MinInterval time.Duration

	// RetentionWindow bounds how long terminal jobs stay in the session
	// view; older ones are filtered out of each snapshot
	RetentionWindow time.Duration
}

// DefaultOptions returns the default coordinator options
func DefaultOptions() *Options {
	return &Options{
		MinInterval:     2 * time.Second,
		RetentionWindow: 24 * time.Hour,
	}
}

type flight struct {
	done chan struct{}
	err  error
}

// Coordinator serializes snapshot fetches into the store
type Coordinator struct {
	client Fetcher
	store  *store.Store
	opts   Options

	mu          sync.Mutex
	lastSuccess time.Time
	inflight    *flight

	// disconnected tracks whether the push connection has dropped since
	// the last open, to trigger the gap-repair refresh on reconnect.
	disconnected bool
}

// New creates a coordinator feeding the given store from the given client
func New(client Fetcher, s *store.Store, opts *Options) *Coordinator {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Coordinator{
		client: client,
		store:  s,
		opts:   *opts,
	}
}

// Refresh fetches the job snapshot and applies it to the store. Non-forced
// calls inside the debounce window resolve immediately; concurrent callers
// share a single in-flight fetch. On failure the store is left untouched
// and the error is returned; the coordinator does not retry on its own.
func (c *Coordinator) Refresh(ctx context.Context, force bool) error {
	c.mu.Lock()
	if !force && !c.lastSuccess.IsZero() && time.Since(c.lastSuccess) < c.opts.MinInterval {
		c.mu.Unlock()
		return nil
	}
	if c.inflight != nil {
		fl := c.inflight
		c.mu.Unlock()
		<-fl.done
		return fl.err
	}
	fl := &flight{done: make(chan struct{})}
	c.inflight = fl
	c.mu.Unlock()

	// The fetch timestamp is taken before the request goes out, so a delta
	// arriving while the fetch is in flight outranks the snapshot.
	fetchedAt := time.Now()
	jobs, err := c.client.GetJobs(ctx)
	if err != nil {
		err = fmt.Errorf("error fetching job snapshot: %w", err)
	} else {
		c.store.ApplySnapshot(c.filterRelevant(jobs), fetchedAt)
	}

	c.mu.Lock()
	if err == nil {
		c.lastSuccess = time.Now()
	}
	fl.err = err
	c.inflight = nil
	c.mu.Unlock()

	close(fl.done)
	return err
}

// BindTransport subscribes to the transport's connection health and
// refreshes once whenever the connection reopens after a drop, closing the
// missed-events gap. Returns the disposer for the subscription.
func (c *Coordinator) BindTransport(source StateSource) func() {
	return source.OnStateChange(func(change types.StateChange) {
		c.mu.Lock()
		switch change.State {
		case types.ConnectionDisconnected:
			c.disconnected = true
			c.mu.Unlock()
		case types.ConnectionOpen:
			wasDisconnected := c.disconnected
			c.disconnected = false
			c.mu.Unlock()
			if wasDisconnected {
				go func() {
					if err := c.Refresh(context.Background(), false); err != nil {
						logger.Warnf("Post-reconnect refresh failed: %v", err)
					}
				}()
			}
		default:
			c.mu.Unlock()
		}
	})
}

// filterRelevant drops terminal jobs that fell out of the retention window.
// Non-terminal jobs always stay.
func (c *Coordinator) filterRelevant(jobs []types.Job) []types.Job {
	cutoff := time.Now().Add(-c.opts.RetentionWindow)

	relevant := make([]types.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Status.IsTerminal() && job.UpdatedAt.Before(cutoff) {
			continue
		}
		relevant = append(relevant, job)
	}
	return relevant
}
