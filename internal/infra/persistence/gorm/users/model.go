package usersgorm

import (
	"gorm.io/gorm"
)

// GORM models (IDs as uint via gorm.Model)

type UserRecord struct {
	gorm.Model
	Username    string `gorm:"uniqueIndex;size:64;not null"`
	DisplayName string `gorm:"size:128"`
	Avatar      string `gorm:"size:256"`
	TotalXP     int64  `gorm:"default:0"`
	Level       int    `gorm:"default:1"`
	// No column default: gorm would drop a zero-value Active from the
	// insert and the row would come back active.
	Active bool
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserRecord{})
}
