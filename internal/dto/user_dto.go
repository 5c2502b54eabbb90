package dto

import (
	"time"

	"github.com/google/uuid"
)

type UserProfileResponse struct {
	Id        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type SaveCredentialRequest struct {
	Provider string `json:"provider" validate:"required,oneof=openai gemini jina"`
	ApiKey   string `json:"api_key" validate:"required,min=8"`
}

type SaveCredentialResponse struct {
	Id       uuid.UUID `json:"id"`
	Provider string    `json:"provider"`
}

type CredentialResponse struct {
	Id        uuid.UUID `json:"id"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}
