package dto

import (
	"time"
)

type UploadBookRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=255"`
	Author  string `json:"author" validate:"max=255"`
	Content string `json:"content" validate:"required,min=1"`
}

type UploadBookResponse struct {
	Id     int64  `json:"id"`
	Status string `json:"status"`
}

type BookListItemResponse struct {
	Id         int64      `json:"id"`
	Title      string     `json:"title"`
	Author     string     `json:"author,omitempty"`
	Status     string     `json:"status"`
	ChunkCount int        `json:"chunk_count"`
	WordCount  int        `json:"word_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

type ShowBookResponse struct {
	Id          int64      `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author,omitempty"`
	Status      string     `json:"status"`
	StatusError string     `json:"status_error,omitempty"`
	ChunkCount  int        `json:"chunk_count"`
	WordCount   int        `json:"word_count"`
	TokenCount  int        `json:"token_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type ProcessBookRequest struct {
	// Force re-embeds a book that already has stored vectors.
	Force bool `json:"force"`
}

type ProcessBookResponse struct {
	Id       int64  `json:"id"`
	Status   string `json:"status"`
	Enqueued bool   `json:"enqueued"`
}

// BookStatusResponse merges the persisted book row with the live pipeline
// view: whether a job is tracked for the book and the latest progress event.
type BookStatusResponse struct {
	Id        int64  `json:"id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	InQueue   bool   `json:"in_queue"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Message   string `json:"message,omitempty"`
}

type QueryBookRequest struct {
	Query string `json:"query" validate:"required,min=1"`
	TopK  int    `json:"top_k" validate:"omitempty,min=1,max=20"`
}

type BookExcerptDTO struct {
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

type QueryBookResponse struct {
	BookId   int64            `json:"book_id"`
	Query    string           `json:"query"`
	Excerpts []BookExcerptDTO `json:"excerpts"`
}

type ClearEmbeddingsResponse struct {
	Id      int64  `json:"id"`
	Status  string `json:"status"`
	Cleared bool   `json:"cleared"`
}
