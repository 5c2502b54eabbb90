package events

import "time"

// Event type codes published on the bus.
const (
	TypeUserRegistered       = "USER_REGISTERED"
	TypeUserLogin            = "USER_LOGIN"
	TypeBookCreated          = "BOOK_CREATED"
	TypeBookProcessed        = "BOOK_PROCESSED"
	TypeBookProcessingFailed = "BOOK_PROCESSING_FAILED"
	TypeBookDeleted          = "BOOK_DELETED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "BOOK_PROCESSED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
