package unitofwork

import (
	"context"

	"ai-bookchat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	BookRepository() contract.BookRepository
	ApiCredentialRepository() contract.ApiCredentialRepository

	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
}
