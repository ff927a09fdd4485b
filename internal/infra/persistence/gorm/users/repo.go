package usersgorm

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Create(ctx context.Context, u *UserRecord) error {
	return r.db.WithContext(ctx).Create(u).Error
}
func (r *Repo) Update(ctx context.Context, u *UserRecord) error {
	return r.db.WithContext(ctx).Save(u).Error
}
func (r *Repo) Get(ctx context.Context, id uint) (*UserRecord, error) {
	var u UserRecord
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
func (r *Repo) GetByUsername(ctx context.Context, username string) (*UserRecord, error) {
	var u UserRecord
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
func (r *Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&UserRecord{}).Count(&n).Error
	return n, err
}

// AddXP bumps the user's XP total and recomputes the level (1 level per 1000 XP).
func (r *Repo) AddXP(ctx context.Context, userID uint, xp int64) error {
	if xp <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u UserRecord
		if err := tx.First(&u, userID).Error; err != nil {
			return err
		}
		u.TotalXP += xp
		u.Level = 1 + int(u.TotalXP/1000)
		return tx.Save(&u).Error
	})
}
