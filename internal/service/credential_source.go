package service

import (
	"context"

	"ai-bookchat-be/internal/repository/specification"
	"ai-bookchat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// CredentialStore adapts the credential repository to the lookup the
// embedding resolver wants. A user with no stored key yields an empty key,
// not an error, so the resolver can fall through to the process default.
type CredentialStore struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewCredentialStore(uowFactory unitofwork.RepositoryFactory) *CredentialStore {
	return &CredentialStore{uowFactory: uowFactory}
}

func (c *CredentialStore) ApiKeyFor(ctx context.Context, userID uuid.UUID, provider string) (string, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	cred, err := uow.ApiCredentialRepository().FindOne(ctx,
		specification.UserOwnedBy{UserID: userID},
		specification.ByProvider{Provider: provider},
	)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", nil
	}
	return cred.ApiKey, nil
}
