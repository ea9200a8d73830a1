package repository

import (
	"context"

	"github.com/smallbiznis/animegate/internal/gate/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, req *domain.JoinRequest) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO join_requests (channel_id, user_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (channel_id, user_id) DO NOTHING`,
		req.ChannelID,
		req.UserID,
		req.CreatedAt,
	).Error
}

func (r *repo) Exists(ctx context.Context, db *gorm.DB, channelID, userID int64) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM join_requests WHERE channel_id = ? AND user_id = ?`,
		channelID,
		userID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
