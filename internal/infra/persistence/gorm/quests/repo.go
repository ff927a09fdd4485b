package questsgorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotClaimable = errors.New("quest not completed or already claimed")

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) CreateQuest(ctx context.Context, q *Quest) error {
	return r.db.WithContext(ctx).Create(q).Error
}
func (r *Repo) ListQuests(ctx context.Context, activeOnly bool) ([]*Quest, error) {
	q := r.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var arr []*Quest
	if err := q.Order("id ASC").Find(&arr).Error; err != nil {
		return nil, err
	}
	return arr, nil
}

func (r *Repo) ListUserQuests(ctx context.Context, userID uint) ([]*UserQuest, error) {
	var arr []*UserQuest
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&arr).Error; err != nil {
		return nil, err
	}
	return arr, nil
}

// Claim flips the claimed flag of a completed, unclaimed user quest and
// returns the quest's XP reward. Progress tracking itself lives outside
// this service.
func (r *Repo) Claim(ctx context.Context, userID, questID uint) (int64, error) {
	var reward int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var uq UserQuest
		if err := tx.Where("user_id = ? AND quest_id = ?", userID, questID).First(&uq).Error; err != nil {
			return err
		}
		if !uq.Completed || uq.Claimed {
			return ErrNotClaimable
		}
		now := time.Now().UTC()
		uq.Claimed = true
		uq.ClaimedAt = &now
		if err := tx.Save(&uq).Error; err != nil {
			return err
		}
		var q Quest
		if err := tx.First(&q, questID).Error; err != nil {
			return err
		}
		reward = q.XPReward
		return nil
	})
	return reward, err
}

// XP rules

func (r *Repo) RuleForGame(ctx context.Context, gameID uint) (*XPRule, error) {
	var rule XPRule
	if err := r.db.WithContext(ctx).Where("game_id = ?", gameID).First(&rule).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *Repo) UpsertRule(ctx context.Context, rule *XPRule) error {
	var existing XPRule
	err := r.db.WithContext(ctx).Where("game_id = ?", rule.GameID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.WithContext(ctx).Create(rule).Error
	}
	if err != nil {
		return err
	}
	existing.BaseXP = rule.BaseXP
	existing.XPPerPoint = rule.XPPerPoint
	existing.DailyCap = rule.DailyCap
	return r.db.WithContext(ctx).Save(&existing).Error
}

// SessionXP applies a game's rule to a final score. Nil rule means no XP.
func SessionXP(rule *XPRule, score int64) int64 {
	if rule == nil {
		return 0
	}
	xp := rule.BaseXP + rule.XPPerPoint*score
	if rule.DailyCap > 0 && xp > rule.DailyCap {
		xp = rule.DailyCap
	}
	if xp < 0 {
		xp = 0
	}
	return xp
}
