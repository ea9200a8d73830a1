package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindForUpdate(ctx context.Context, db *gorm.DB, userID int64) (*VipGrant, error)
	FindByUserID(ctx context.Context, db *gorm.DB, userID int64) (*VipGrant, error)
	Insert(ctx context.Context, db *gorm.DB, grant *VipGrant) error
	Reset(ctx context.Context, db *gorm.DB, userID int64, days int, at time.Time) error
	AddDays(ctx context.Context, db *gorm.DB, userID int64, days int, at time.Time) error
	Delete(ctx context.Context, db *gorm.DB, userID int64) error
	// ClaimDue locks grants last accounted at or before cutoff, skipping rows
	// already locked by another sweeper.
	ClaimDue(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]VipGrant, error)
	UpdateAccounting(ctx context.Context, db *gorm.DB, userID int64, remaining int, accountedAt time.Time) error
}
