package dto

import (
	"github.com/google/uuid"
)

// PublishEmbedBookMessage is the queue payload for one embedding job. The
// live job state rides in the registry; the payload repeats enough of it to
// reconstruct a run if the registry entry is gone.
type PublishEmbedBookMessage struct {
	BookId int64     `json:"book_id"`
	UserId uuid.UUID `json:"user_id"`
	RunId  uuid.UUID `json:"run_id"`
	Force  bool      `json:"force"`
}
