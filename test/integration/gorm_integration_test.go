package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"ai-bookchat-be/internal/entity"
	"ai-bookchat-be/internal/repository/specification"
	"ai-bookchat-be/internal/repository/unitofwork"
	"ai-bookchat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConnection(t *testing.T) {
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.UserRepository())
	assert.NotNil(t, uow.BookRepository())
	assert.NotNil(t, uow.ChatSessionRepository())

	sqlDB, _ := gormDB.DB()
	require.NoError(t, sqlDB.Ping())

	t.Run("Check User Repository", func(t *testing.T) {
		count, err := uow.UserRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("User count: %d", count)
	})

	t.Run("Book And Session Round Trip", func(t *testing.T) {
		ctx := context.Background()

		user := &entity.User{
			Id:        uuid.New(),
			Email:     "test-integration-" + uuid.New().String() + "@example.com",
			FullName:  "Integration Test User",
			Role:      entity.UserRoleUser,
			Status:    entity.UserStatusActive,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		require.NoError(t, uow.UserRepository().Create(ctx, user))

		book := &entity.Book{
			UserId:    user.Id,
			Title:     "Integration Test Book",
			Author:    "Tester",
			Content:   "A very short book. It has two sentences.",
			Status:    entity.BookStatusPending,
			CreatedAt: time.Now(),
		}
		require.NoError(t, uow.BookRepository().Create(ctx, book))
		require.NotZero(t, book.Id, "autoincrement id should be backfilled")

		found, err := uow.BookRepository().FindOne(ctx,
			specification.ByBookID{BookID: book.Id},
			specification.UserOwnedBy{UserID: user.Id},
		)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "Integration Test Book", found.Title)

		require.NoError(t, uow.BookRepository().UpdateStatus(ctx, book.Id, entity.BookStatusCompleted, ""))
		found, err = uow.BookRepository().FindOne(ctx, specification.ByBookID{BookID: book.Id})
		require.NoError(t, err)
		assert.Equal(t, entity.BookStatusCompleted, found.Status)

		session := &entity.ChatSession{
			Id:        uuid.New(),
			UserId:    user.Id,
			BookId:    book.Id,
			Title:     "Integration Session",
			CreatedAt: time.Now(),
		}
		require.NoError(t, uow.ChatSessionRepository().Create(ctx, session))

		sessions, err := uow.ChatSessionRepository().FindAll(ctx,
			specification.UserOwnedBy{UserID: user.Id},
			specification.SessionForBook{BookID: book.Id},
		)
		require.NoError(t, err)
		assert.Len(t, sessions, 1)

		// Cleanup
		assert.NoError(t, uow.ChatSessionRepository().DeleteAllForBook(ctx, book.Id))
		assert.NoError(t, uow.BookRepository().Delete(ctx, book.Id))
	})
}
