package mapper

import (
	"time"

	"ai-bookchat-be/internal/entity"
	"ai-bookchat-be/internal/model"

	"gorm.io/gorm"
)

type BookMapper struct{}

func NewBookMapper() *BookMapper {
	return &BookMapper{}
}

func (m *BookMapper) ToEntity(b *model.Book) *entity.Book {
	if b == nil {
		return nil
	}

	var deletedAt *time.Time
	if b.DeletedAt.Valid {
		t := b.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !b.UpdatedAt.IsZero() {
		t := b.UpdatedAt
		updatedAt = &t
	}

	return &entity.Book{
		Id:          b.Id,
		UserId:      b.UserId,
		Title:       b.Title,
		Author:      b.Author,
		Content:     b.Content,
		Status:      entity.BookStatus(b.Status),
		StatusError: b.StatusError,
		ChunkCount:  b.ChunkCount,
		WordCount:   b.WordCount,
		TokenCount:  b.TokenCount,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
		IsDeleted:   b.DeletedAt.Valid,
	}
}

func (m *BookMapper) ToModel(b *entity.Book) *model.Book {
	if b == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if b.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *b.DeletedAt, Valid: true}
	} else if b.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if b.UpdatedAt != nil {
		updatedAt = *b.UpdatedAt
	}

	return &model.Book{
		Id:          b.Id,
		UserId:      b.UserId,
		Title:       b.Title,
		Author:      b.Author,
		Content:     b.Content,
		Status:      string(b.Status),
		StatusError: b.StatusError,
		ChunkCount:  b.ChunkCount,
		WordCount:   b.WordCount,
		TokenCount:  b.TokenCount,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
	}
}

func (m *BookMapper) ToEntities(books []*model.Book) []*entity.Book {
	entities := make([]*entity.Book, len(books))
	for i, b := range books {
		entities[i] = m.ToEntity(b)
	}
	return entities
}

func (m *BookMapper) ToModels(books []*entity.Book) []*model.Book {
	models := make([]*model.Book, len(books))
	for i, b := range books {
		models[i] = m.ToModel(b)
	}
	return models
}
