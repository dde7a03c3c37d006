// Package store implements the reconciliation engine behind the session's
// job view. It merges full-fetch snapshots and push-event deltas into a
// single de-duplicated list and notifies subscribers on every observable
// change.
//
// The merge rule is last-writer-wins by UpdatedAt with a terminal-state
// ratchet: once a job reaches completed, failed or cancelled its status is
// never downgraded, regardless of timestamps. Two updates with the same
// UpdatedAt resolve toward the terminal state and are otherwise a no-op.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/filmvoice/jobsync/internal/logger"
	"github.com/filmvoice/jobsync/internal/types"
)

// Subscriber receives the full job list after every state-changing apply.
// Callbacks run synchronously under the store lock and must not re-enter
// the store; the list they receive is a copy they may keep.
type Subscriber func(jobs []types.Job)

type entry struct {
	job types.Job
	// lastDeltaAt is the local receipt time of the most recent delta for
	// this job. A snapshot fetched before that instant cannot evict it.
	lastDeltaAt time.Time
}

// Store holds the canonical in-memory list of jobs known to the session.
// It is the single mutable shared resource of the subsystem; every mutation
// goes through ApplySnapshot, ApplyDelta or Reset.
type Store struct {
	mu          sync.Mutex
	jobs        map[types.JobID]*entry
	subscribers map[string]Subscriber
}

// New creates an empty store
func New() *Store {
	return &Store{
		jobs:        make(map[types.JobID]*entry),
		subscribers: make(map[string]Subscriber),
	}
}

// Subscribe registers a callback for state changes and returns a disposer.
// The disposer is idempotent and safe to call multiple times.
func (s *Store) Subscribe(cb Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := uuid.NewString()
	s.subscribers[key] = cb

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, key)
	}
}

// GetAll returns a copy of the current job list, newest first by CreatedAt
func (s *Store) GetAll() []types.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// GetByID returns the job with the given id, if present
func (s *Store) GetByID(id types.JobID) (types.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return types.Job{}, false
	}
	return e.job, true
}

// ApplySnapshot merges a full job list obtained from a fetch. Jobs absent
// locally are inserted; present ones merge under the recency rule. Local
// jobs missing from the snapshot are evicted unless a delta touched them
// after fetchedAt, which protects a just-created job from a snapshot that
// raced ahead of its delta.
func (s *Store) ApplySnapshot(jobs []types.Job, fetchedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	seen := make(map[types.JobID]struct{}, len(jobs))

	for _, incoming := range jobs {
		if incoming.ID == "" {
			logger.Warn("Dropping snapshot entry without an id")
			continue
		}
		seen[incoming.ID] = struct{}{}

		e, ok := s.jobs[incoming.ID]
		if !ok {
			job := incoming
			s.jobs[incoming.ID] = &entry{job: job}
			changed = true
			continue
		}
		if mergeJob(&e.job, incoming) {
			changed = true
		}
	}

	for id, e := range s.jobs {
		if _, ok := seen[id]; ok {
			continue
		}
		if e.lastDeltaAt.After(fetchedAt) {
			continue
		}
		delete(s.jobs, id)
		changed = true
	}

	if changed {
		s.notifyLocked()
	}
}

// ApplyDelta merges a partial update from a push event. An unseen id
// materializes a new job from the partial fields; the next snapshot fills
// in the rest. The store is left untouched on invalid input.
func (s *Store) ApplyDelta(u types.JobUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[u.ID]
	if !ok {
		s.jobs[u.ID] = &entry{job: materialize(u), lastDeltaAt: time.Now()}
		s.notifyLocked()
		return nil
	}

	e.lastDeltaAt = time.Now()
	if !mergeDelta(&e.job, u) {
		return nil
	}

	s.notifyLocked()
	return nil
}

// Reset drops all jobs, for session-scoped eviction such as logout
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.jobs) == 0 {
		return
	}
	s.jobs = make(map[types.JobID]*entry)
	s.notifyLocked()
}

func (s *Store) snapshotLocked() []types.Job {
	out := make([]types.Job, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, e.job)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) notifyLocked() {
	jobs := s.snapshotLocked()
	for _, cb := range s.subscribers {
		cb(jobs)
	}
}

// materialize builds a job from the partial fields of a delta for an id the
// session has not fetched yet.
func materialize(u types.JobUpdate) types.Job {
	job := types.Job{
		ID:        u.ID,
		CreatedAt: u.UpdatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.Progress != nil {
		job.Progress = *u.Progress
	}
	if u.ErrorMessage != nil {
		job.ErrorMessage = *u.ErrorMessage
	}
	return job
}

// mergeJob merges a full snapshot entity into the local job. Returns true
// if the local job changed.
func mergeJob(local *types.Job, incoming types.Job) bool {
	if local.UpdatedAt.After(incoming.UpdatedAt) {
		return false
	}
	if local.UpdatedAt.Equal(incoming.UpdatedAt) {
		// Duplicates are idempotent; the only equal-timestamp update that
		// wins is one that moves the job to a terminal state.
		if local.Status.IsTerminal() || !incoming.Status.IsTerminal() {
			return false
		}
	}
	if local.Status.IsTerminal() && !incoming.Status.IsTerminal() {
		// Terminal ratchet: a finished job is never reopened.
		return false
	}

	*local = incoming
	return true
}

// mergeDelta merges a partial update into the local job. Returns true if
// the local job changed.
func mergeDelta(local *types.Job, u types.JobUpdate) bool {
	if local.UpdatedAt.After(u.UpdatedAt) {
		return backfill(local, u)
	}

	if local.UpdatedAt.Equal(u.UpdatedAt) {
		if u.Status == nil || local.Status.IsTerminal() || !u.Status.IsTerminal() {
			return false
		}
		local.Status = *u.Status
		return true
	}

	changed := false
	if u.Status != nil && *u.Status != local.Status {
		if local.Status.IsTerminal() {
			logger.DebugWithFields("Ignoring status change for terminal job", map[string]interface{}{
				"job_id": string(local.ID),
				"status": u.Status.String(),
			})
		} else {
			local.Status = *u.Status
			changed = true
		}
	}
	if u.Progress != nil && *u.Progress != local.Progress {
		local.Progress = *u.Progress
		changed = true
	}
	if u.ErrorMessage != nil && *u.ErrorMessage != local.ErrorMessage {
		local.ErrorMessage = *u.ErrorMessage
		changed = true
	}
	if u.UpdatedAt.After(local.UpdatedAt) {
		local.UpdatedAt = u.UpdatedAt
		changed = true
	}
	return changed
}

// backfill lets an out-of-order older delta fill fields the newer writes
// never set, without touching anything the newer writes own.
func backfill(local *types.Job, u types.JobUpdate) bool {
	changed := false
	if u.Status != nil && local.Status == types.JobStatusUnknown {
		local.Status = *u.Status
		changed = true
	}
	if u.Progress != nil && local.Progress == 0 && *u.Progress != 0 {
		local.Progress = *u.Progress
		changed = true
	}
	if u.ErrorMessage != nil && local.ErrorMessage == "" && *u.ErrorMessage != "" {
		local.ErrorMessage = *u.ErrorMessage
		changed = true
	}
	return changed
}
