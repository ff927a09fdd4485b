package lbgorm

import (
	"gorm.io/gorm"
)

// Entry keeps one best score per (user, game).
type Entry struct {
	gorm.Model
	UserID uint  `gorm:"uniqueIndex:uniq_lb_user_game,priority:1;not null"`
	GameID uint  `gorm:"uniqueIndex:uniq_lb_user_game,priority:2;not null"`
	Score  int64 `gorm:"not null;index"`
}

// Row is a scan target for ranked reads joined with user names.
type Row struct {
	Rank     int    `json:"rank"`
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Entry{})
}
