package specification

import (
	"slingshot-be/pkg/research/domain"

	"gorm.io/gorm"
)

type BySessionID struct {
	ID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

type ByUserID struct {
	UserID string
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type ByMode struct {
	Mode domain.Mode
}

func (s ByMode) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("mode = ?", string(s.Mode))
}

type ByStatus struct {
	Status domain.Status
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", string(s.Status))
}
