package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/animegate/internal/broadcast/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) TryInsert(ctx context.Context, db *gorm.DB, job *domain.Job) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO broadcast_jobs (
			singleton, id, admin_id, source_chat, source_message, mode, sent, failed, created_at, heartbeat_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT (singleton) DO NOTHING`,
		job.Singleton,
		job.ID,
		job.AdminID,
		job.SourceChat,
		job.SourceMessage,
		job.Mode,
		job.CreatedAt,
		job.HeartbeatAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Current(ctx context.Context, db *gorm.DB) (*domain.Job, error) {
	var job domain.Job
	err := db.WithContext(ctx).Take(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *repo) UpdateProgress(ctx context.Context, db *gorm.DB, id snowflake.ID, sent, failed int, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE broadcast_jobs SET sent = ?, failed = ?, heartbeat_at = ? WHERE id = ?`,
		sent,
		failed,
		at,
		id,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM broadcast_jobs WHERE id = ?`, id).Error
}

func (r *repo) DeleteStale(ctx context.Context, db *gorm.DB, id snowflake.ID, cutoff time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM broadcast_jobs WHERE id = ? AND heartbeat_at <= ?`,
		id,
		cutoff,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
