package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// TryInsert reports false when another job already holds the slot.
	TryInsert(ctx context.Context, db *gorm.DB, job *Job) (bool, error)
	Current(ctx context.Context, db *gorm.DB) (*Job, error)
	UpdateProgress(ctx context.Context, db *gorm.DB, id snowflake.ID, sent, failed int, at time.Time) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	// DeleteStale frees the slot only if the job has not reported progress
	// since cutoff.
	DeleteStale(ctx context.Context, db *gorm.DB, id snowflake.ID, cutoff time.Time) (bool, error)
}
