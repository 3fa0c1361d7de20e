package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultJobTTL is how long finished or running jobs are kept.
const DefaultJobTTL = time.Hour

// JobStore indexes jobs by ID and evicts them once they are older than the
// TTL. Evicted jobs that are still running are cancelled.
type JobStore struct {
	runner *Runner
	ttl    time.Duration
	now    func() time.Time

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobStore returns a store that starts jobs on runner. A ttl of zero
// means DefaultJobTTL.
func NewJobStore(runner *Runner, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &JobStore{
		runner: runner,
		ttl:    ttl,
		now:    time.Now,
		jobs:   make(map[string]*Job),
	}
}

// Start evicts stale jobs, then starts a new one under a fresh UUID.
func (s *JobStore) Start(ctx context.Context, opts Options) *Job {
	s.Evict()
	j := s.runner.Start(ctx, uuid.NewString(), opts)
	j.CreatedAt = s.now()

	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()
	s.runner.Logger.Debug("job started", "job", j.ID, "jobs", s.Len())
	return j
}

// Get returns the job with the given ID.
func (s *JobStore) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Evict drops jobs older than the TTL and returns how many were dropped.
func (s *JobStore) Evict() int {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, j := range s.jobs {
		if j.CreatedAt.Before(cutoff) {
			j.Cancel()
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// Run evicts stale jobs every interval until ctx is done.
func (s *JobStore) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Evict(); n > 0 {
				s.runner.Logger.Info("evicted jobs", "count", n)
			}
		}
	}
}

// Close cancels every job.
func (s *JobStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		j.Cancel()
		delete(s.jobs, id)
	}
}
