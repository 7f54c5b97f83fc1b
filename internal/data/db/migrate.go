package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/cukee-curation/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(domain.Models()...)
}
