package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobInfo is a read-only view of one tracked job for the ops surface.
type JobInfo struct {
	BookID     int64     `json:"book_id"`
	RunID      uuid.UUID `json:"run_id"`
	Force      bool      `json:"force"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Registry tracks the jobs currently queued or running, one per book. Its
// single-slot-per-book rule is what makes a duplicate enqueue a no-op: the
// second request finds the book already tracked and backs off.
type Registry struct {
	mu   sync.Mutex
	jobs map[int64]*Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[int64]*Job)}
}

// Add registers a job unless its book is already tracked. It reports whether
// the job was accepted.
func (r *Registry) Add(job *Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.BookID]; exists {
		return false
	}
	r.jobs[job.BookID] = job
	return true
}

func (r *Registry) Get(bookID int64) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[bookID]
	return job, ok
}

// Remove untracks a book. Called when its job completes so the next enqueue
// for the same book is accepted again.
func (r *Registry) Remove(bookID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, bookID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Snapshot lists tracked jobs in enqueue order.
func (r *Registry) Snapshot() []JobInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]JobInfo, 0, len(r.jobs))
	for _, job := range r.jobs {
		infos = append(infos, JobInfo{
			BookID:     job.BookID,
			RunID:      job.RunID,
			Force:      job.Force,
			EnqueuedAt: job.EnqueuedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].EnqueuedAt.Before(infos[j].EnqueuedAt) })
	return infos
}
