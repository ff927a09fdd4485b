package gamesgorm

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// Games CRUD
func (r *Repo) Create(ctx context.Context, g *Game) error {
	return r.db.WithContext(ctx).Create(g).Error
}
func (r *Repo) Update(ctx context.Context, g *Game) error { return r.db.WithContext(ctx).Save(g).Error }
func (r *Repo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&Game{}, id).Error
}
func (r *Repo) Get(ctx context.Context, id uint) (*Game, error) {
	var g Game
	if err := r.db.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}
func (r *Repo) GetBySlug(ctx context.Context, slug string) (*Game, error) {
	var g Game
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}
func (r *Repo) List(ctx context.Context, enabledOnly bool) ([]*Game, error) {
	q := r.db.WithContext(ctx)
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	var arr []*Game
	if err := q.Order("name ASC").Find(&arr).Error; err != nil {
		return nil, err
	}
	return arr, nil
}

// Sessions

func (r *Repo) StartSession(ctx context.Context, s *GameSession) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	s.Status = SessionActive
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSession(ctx context.Context, id uint) (*GameSession, error) {
	var s GameSession
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// CompleteSession marks the session completed with the final score and
// folds the result into GameProgress (plays+1, best score) in one tx.
func (r *Repo) CompleteSession(ctx context.Context, id uint, score, xp int64) (*GameSession, error) {
	var s GameSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&s, id).Error; err != nil {
			return err
		}
		if s.Status != SessionActive {
			return gorm.ErrInvalidData
		}
		now := time.Now().UTC()
		s.Score = score
		s.XPEarned = xp
		s.Status = SessionCompleted
		s.EndedAt = &now
		if err := tx.Save(&s).Error; err != nil {
			return err
		}
		return upsertProgress(tx, s.UserID, s.GameID, score, now)
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// AbandonSession marks a still-active session abandoned (e.g. socket drop).
func (r *Repo) AbandonSession(ctx context.Context, id uint) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&GameSession{}).
		Where("id = ? AND status = ?", id, SessionActive).
		Updates(map[string]any{"status": SessionAbandoned, "ended_at": now}).Error
}

func (r *Repo) CountSessions(ctx context.Context, status string) (int64, error) {
	q := r.db.WithContext(ctx).Model(&GameSession{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// Progress

func (r *Repo) ListProgress(ctx context.Context, userID uint) ([]*GameProgress, error) {
	var arr []*GameProgress
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("last_played DESC").Find(&arr).Error; err != nil {
		return nil, err
	}
	return arr, nil
}

func upsertProgress(tx *gorm.DB, userID, gameID uint, score int64, now time.Time) error {
	var p GameProgress
	err := tx.Where("user_id = ? AND game_id = ?", userID, gameID).First(&p).Error
	if err == gorm.ErrRecordNotFound {
		p = GameProgress{UserID: userID, GameID: gameID, Plays: 1, BestScore: score, LastPlayed: now}
		return tx.Create(&p).Error
	}
	if err != nil {
		return err
	}
	p.Plays++
	if score > p.BestScore {
		p.BestScore = score
	}
	p.LastPlayed = now
	return tx.Save(&p).Error
}
