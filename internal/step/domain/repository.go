package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, userID int64) (*Record, error)
	Upsert(ctx context.Context, db *gorm.DB, record *Record) error
	Delete(ctx context.Context, db *gorm.DB, userID int64) error
}
