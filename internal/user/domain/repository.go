package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// Insert reports false when the user already existed.
	Insert(ctx context.Context, db *gorm.DB, user *User) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*User, error)
	SetTier(ctx context.Context, db *gorm.DB, id int64, tier Tier) error
	ListIDs(ctx context.Context, db *gorm.DB, afterID int64, limit int) ([]int64, error)
	Count(ctx context.Context, db *gorm.DB, tier Tier) (int64, error)
}
