package job

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job tracks one long-running extraction. Mutated only through Registry
// operations.
type Job struct {
	ID         string
	Cancelled  bool
	CreatedAt  time.Time
	finishedAt time.Time
}

// Registry maps job identifiers to cancellation flags. It is owned by the
// ingestion service instance, not shared module state, so tests can run with
// isolated registries.
type Registry struct {
	mu    sync.Mutex
	jobs  map[string]*Job
	grace time.Duration
	stop  chan struct{}
	once  sync.Once
}

// NewRegistry creates a registry whose finished entries linger for grace
// before eviction, so a cancel request that races job completion still finds
// its entry.
func NewRegistry(grace time.Duration) *Registry {
	r := &Registry{
		jobs:  make(map[string]*Job),
		grace: grace,
		stop:  make(chan struct{}),
	}
	go r.sweep()
	return r
}

// Create registers a new job and returns its identifier.
func (r *Registry) Create() string {
	id := uuid.New().String()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = &Job{ID: id, CreatedAt: time.Now()}
	return id
}

// Cancel marks the job cancelled. Returns false when the job is unknown.
// Actual stoppage is cooperative: workers observe the flag at their next poll.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return false
	}
	j.Cancelled = true
	if j.finishedAt.IsZero() {
		j.finishedAt = time.Now()
	}
	return true
}

// IsCancelled reports the job's cancellation flag. Unknown jobs report false
// so extraction started without a registry entry runs to completion.
func (r *Registry) IsCancelled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return ok && j.Cancelled
}

// Done marks the job finished; the entry stays visible for the grace period.
func (r *Registry) Done(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok && j.finishedAt.IsZero() {
		j.finishedAt = time.Now()
	}
}

// Active returns the number of jobs not yet finished or cancelled.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.jobs {
		if j.finishedAt.IsZero() {
			n++
		}
	}
	return n
}

// Close stops the background sweeper.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.stop) })
}

func (r *Registry) sweep() {
	interval := r.grace / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictExpired()
		}
	}
}

func (r *Registry) evictExpired() {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, j := range r.jobs {
		if !j.finishedAt.IsZero() && now.Sub(j.finishedAt) > r.grace {
			delete(r.jobs, id)
			slog.Debug("evicted finished job", "job_id", id)
		}
	}
}
