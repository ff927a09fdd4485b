package questsgorm

import (
	"time"

	"gorm.io/gorm"
)

// Quest is a tracked objective definition.
type Quest struct {
	gorm.Model
	Slug        string `gorm:"uniqueIndex;size:64;not null"`
	Title       string `gorm:"size:128;not null"`
	Description string `gorm:"type:text"`
	XPReward    int64  `gorm:"default:0"`
	TargetCount int64  `gorm:"default:1"`
	// No column default: gorm would drop a zero-value Active from the
	// insert and the row would come back active.
	Active bool
}

// UserQuest tracks one user's completion/claim state for one quest.
type UserQuest struct {
	gorm.Model
	UserID      uint  `gorm:"uniqueIndex:uniq_user_quest,priority:1;not null"`
	QuestID     uint  `gorm:"uniqueIndex:uniq_user_quest,priority:2;not null"`
	Progress    int64 `gorm:"default:0"`
	Completed   bool  `gorm:"default:false"`
	Claimed     bool  `gorm:"default:false"`
	CompletedAt *time.Time
	ClaimedAt   *time.Time
}

// XPRule sets how sessions of one game convert to XP.
type XPRule struct {
	gorm.Model
	GameID     uint  `gorm:"uniqueIndex;not null"`
	BaseXP     int64 `gorm:"default:0"`
	XPPerPoint int64 `gorm:"default:0"`
	DailyCap   int64 `gorm:"default:0"` // 0 means uncapped
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Quest{}, &UserQuest{}, &XPRule{})
}
