package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/animegate/internal/step/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, userID int64) (*domain.Record, error) {
	var record domain.Record
	err := db.WithContext(ctx).Where("user_id = ?", userID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, record *domain.Record) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"flow", "stage", "fields", "updated_at"}),
	}).Create(record).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID int64) error {
	return db.WithContext(ctx).Exec(`DELETE FROM user_steps WHERE user_id = ?`, userID).Error
}
