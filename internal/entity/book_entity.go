package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookStatus string

const (
	BookStatusPending    BookStatus = "pending"
	BookStatusProcessing BookStatus = "processing"
	BookStatusCompleted  BookStatus = "completed"
	BookStatusError      BookStatus = "error"
)

type Book struct {
	Id          int64
	UserId      uuid.UUID
	Title       string
	Author      string
	Content     string
	Status      BookStatus
	StatusError string
	ChunkCount  int
	WordCount   int
	TokenCount  int
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	DeletedAt   *time.Time
	IsDeleted   bool
}
