package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job tracks one embedding run from enqueue to completion. The text rides in
// memory with the job so the worker doesn't re-read the book row; RunID ties
// the job's progress events together.
type Job struct {
	BookID     int64
	UserID     uuid.UUID
	RunID      uuid.UUID
	Force      bool
	Text       string
	EnqueuedAt time.Time

	done chan struct{}
	err  error
	once sync.Once
}

func NewJob(bookID int64, userID uuid.UUID, text string, force bool) *Job {
	return &Job{
		BookID:     bookID,
		UserID:     userID,
		RunID:      uuid.New(),
		Force:      force,
		Text:       text,
		EnqueuedAt: time.Now(),
		done:       make(chan struct{}),
	}
}

// Done is closed when the run finishes, successfully or not.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err returns the run's failure, valid once Done is closed.
func (j *Job) Err() error {
	return j.err
}

// Complete records the outcome and releases any waiter. Safe to call more
// than once; only the first outcome sticks.
func (j *Job) Complete(err error) {
	j.once.Do(func() {
		j.err = err
		close(j.done)
	})
}
