package contract

import (
	"context"

	"ai-bookchat-be/internal/entity"
	"ai-bookchat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ApiCredentialRepository interface {
	// Upsert replaces the key for the (user, provider) pair if one exists.
	Upsert(ctx context.Context, cred *entity.ApiCredential) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ApiCredential, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ApiCredential, error)
}
