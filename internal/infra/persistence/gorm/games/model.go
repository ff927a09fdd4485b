package gamesgorm

import (
	"time"

	"gorm.io/gorm"
)

// Game is the DB model for a catalog entry.
// Use gorm.Model.ID (uint) as the primary key.
type Game struct {
	gorm.Model
	Slug        string `gorm:"uniqueIndex;size:64;not null"`
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"type:text"`
	Thumbnail   string `gorm:"size:256"`
	Category    string `gorm:"size:64;index"`
	MinPlayers  int    `gorm:"default:1"`
	MaxPlayers  int    `gorm:"default:1"`
	// No column default: gorm skips zero-value bool fields carrying a
	// default tag on insert, which would silently re-enable a disabled row.
	Enabled bool
}

// Session status values.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionAbandoned = "abandoned"
)

// GameSession is one play of a game by one user. Room id links the
// sessions of players sharing a multiplayer room.
type GameSession struct {
	gorm.Model
	UserID    uint   `gorm:"index;not null"`
	GameID    uint   `gorm:"index;not null"`
	RoomID    string `gorm:"size:64;index"`
	Score     int64  `gorm:"default:0"`
	XPEarned  int64  `gorm:"default:0"`
	Status    string `gorm:"size:16;not null;default:active"`
	StartedAt time.Time
	EndedAt   *time.Time
}

// GameProgress aggregates per (user, game): play count, best score.
type GameProgress struct {
	gorm.Model
	UserID     uint  `gorm:"uniqueIndex:uniq_user_game,priority:1;not null"`
	GameID     uint  `gorm:"uniqueIndex:uniq_user_game,priority:2;not null"`
	Plays      int64 `gorm:"default:0"`
	BestScore  int64 `gorm:"default:0"`
	LastPlayed time.Time
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Game{}, &GameSession{}, &GameProgress{})
}
