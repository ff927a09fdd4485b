package lbgorm

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// UpsertBest records score for (user, game), keeping the higher of the
// stored and submitted values.
func (r *Repo) UpsertBest(ctx context.Context, userID, gameID uint, score int64) error {
	e := Entry{UserID: userID, GameID: gameID, Score: score}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "game_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"score":      gorm.Expr("MAX(score, excluded.score)"),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&e).Error
}

// Top returns a ranked window of the game's leaderboard with usernames attached.
func (r *Repo) Top(ctx context.Context, gameID uint, limit, offset int) ([]Row, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []Row
	err := r.db.WithContext(ctx).Table("entries AS e").
		Select("e.user_id, u.username, e.score").
		Joins("JOIN user_records u ON u.id = e.user_id").
		Where("e.game_id = ? AND e.deleted_at IS NULL", gameID).
		Order("e.score DESC, e.updated_at ASC").
		Limit(limit).Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rank = offset + i + 1
	}
	return rows, nil
}

// Rank returns the 1-based position of the user plus the field size; rank 0
// means the user has no entry for the game.
func (r *Repo) Rank(ctx context.Context, gameID, userID uint) (rank int, total int64, err error) {
	var e Entry
	if err = r.db.WithContext(ctx).Where("game_id = ? AND user_id = ?", gameID, userID).First(&e).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			err = nil
		}
		return
	}
	var better int64
	if err = r.db.WithContext(ctx).Model(&Entry{}).
		Where("game_id = ? AND score > ?", gameID, e.Score).Count(&better).Error; err != nil {
		return
	}
	if err = r.db.WithContext(ctx).Model(&Entry{}).
		Where("game_id = ?", gameID).Count(&total).Error; err != nil {
		return
	}
	rank = int(better) + 1
	return
}
