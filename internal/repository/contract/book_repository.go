package contract

import (
	"context"

	"ai-bookchat-be/internal/entity"
	"ai-bookchat-be/internal/repository/specification"
)

type BookRepository interface {
	Create(ctx context.Context, book *entity.Book) error
	Update(ctx context.Context, book *entity.Book) error
	Delete(ctx context.Context, id int64) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Book, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Book, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// UpdateStatus writes only the status columns so a long-running pipeline
	// never clobbers concurrent edits to the book row.
	UpdateStatus(ctx context.Context, id int64, status entity.BookStatus, statusError string) error
	UpdateCounts(ctx context.Context, id int64, chunkCount, wordCount, tokenCount int) error
}
