package specification

import (
	"gorm.io/gorm"
)

// ByBookID filters by the integer book primary key.
type ByBookID struct {
	BookID int64
}

func (s ByBookID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.BookID)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}
