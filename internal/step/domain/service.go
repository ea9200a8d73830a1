package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Get returns Idle when the user has no pending flow.
	Get(ctx context.Context, userID int64) (Step, error)
	// Set replaces any existing step for the user.
	Set(ctx context.Context, userID int64, step Step) error
	Clear(ctx context.Context, userID int64) error
}

var (
	ErrInvalidUser = errors.New("invalid_user")
	ErrInvalidFlow = errors.New("invalid_flow")
)
