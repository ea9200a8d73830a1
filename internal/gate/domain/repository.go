package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, req *JoinRequest) error
	Exists(ctx context.Context, db *gorm.DB, channelID, userID int64) (bool, error)
}
