package entity

import (
	"time"

	"github.com/google/uuid"
)

// ApiCredential is a user's stored key for one embedding/LLM provider. At
// most one credential per (user, provider) pair.
type ApiCredential struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Provider  string
	ApiKey    string
	CreatedAt time.Time
	UpdatedAt *time.Time
}
