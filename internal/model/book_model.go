package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Book struct {
	Id          int64          `gorm:"primaryKey;autoIncrement"`
	UserId      uuid.UUID      `gorm:"type:uuid;not null;index"`
	Title       string         `gorm:"type:varchar(255);not null"`
	Author      string         `gorm:"type:varchar(255)"`
	Content     string         `gorm:"type:text;not null"`
	Status      string         `gorm:"type:varchar(50);not null;default:'pending';index"`
	StatusError string         `gorm:"type:text"`
	ChunkCount  int            `gorm:"default:0"`
	WordCount   int            `gorm:"default:0"`
	TokenCount  int            `gorm:"default:0"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (Book) TableName() string {
	return "books"
}
