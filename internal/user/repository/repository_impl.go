package repository

import (
	"context"

	"github.com/smallbiznis/animegate/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO users (id, tier, referrer_id, first_name, username, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		user.ID,
		user.Tier,
		user.ReferrerID,
		user.FirstName,
		user.Username,
		user.CreatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, tier, referrer_id, first_name, username, created_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) SetTier(ctx context.Context, db *gorm.DB, id int64, tier domain.Tier) error {
	result := db.WithContext(ctx).Exec(`UPDATE users SET tier = ? WHERE id = ?`, tier, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) ListIDs(ctx context.Context, db *gorm.DB, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM users WHERE id > ? ORDER BY id ASC LIMIT ?`,
		afterID,
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, tier domain.Tier) (int64, error) {
	var count int64
	stmt := db.WithContext(ctx).Model(&domain.User{})
	if tier != "" {
		stmt = stmt.Where("tier = ?", tier)
	}
	if err := stmt.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
