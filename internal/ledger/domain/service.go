package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Service interface {
	// OpenAccount creates a zero balance inside the caller's transaction.
	OpenAccount(ctx context.Context, tx *gorm.DB, userID int64) error
	// LockBalance reads the balance row holding a row lock until tx ends.
	LockBalance(ctx context.Context, tx *gorm.DB, userID int64) (Balance, error)
	// Post applies the posting inside the caller's transaction. It reports
	// false when an entry with the same source already exists.
	Post(ctx context.Context, tx *gorm.DB, posting Posting) (bool, error)
	// Apply posts in its own transaction and returns the resulting balance.
	Apply(ctx context.Context, posting Posting) (Balance, error)
	Balance(ctx context.Context, userID int64) (Balance, error)
	Entries(ctx context.Context, userID int64, limit int) ([]LedgerEntry, error)
	Total(ctx context.Context) (int64, error)
}

var (
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidLineDirection = errors.New("invalid_line_direction")
	ErrInvalidSourceType    = errors.New("invalid_source_type")
	ErrInvalidSourceID      = errors.New("invalid_source_id")
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrInsufficientFunds    = errors.New("insufficient_funds")
)
