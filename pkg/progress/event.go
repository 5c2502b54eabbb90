package progress

import (
	"time"

	"github.com/google/uuid"
)

// Processing status values carried by progress events. They mirror the
// book's persisted status so a websocket client and a status poll never
// disagree on vocabulary.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Event is one progress update for a book's embedding run. Processed is the
// cumulative number of chunks embedded so far, not a delta, so consumers can
// render it directly without summing.
type Event struct {
	BookID    int64     `json:"book_id"`
	RunID     uuid.UUID `json:"run_id"`
	Status    string    `json:"status"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Terminal reports whether the event closes out its run.
func (e Event) Terminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusError
}
