package domain

import (
	"context"
	"errors"
)

type RegisterRequest struct {
	ID         int64
	FirstName  string
	Username   string
	ReferrerID int64
}

type RegisterResult struct {
	User    User
	Created bool
	// ReferralCredited is set when the referrer received a bonus for this registration.
	ReferralCredited bool
}

type Stats struct {
	Total int64 `json:"total"`
	VIP   int64 `json:"vip"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (RegisterResult, error)
	Get(ctx context.Context, id int64) (User, error)
	ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
	Stats(ctx context.Context) (Stats, error)
}

var (
	ErrInvalidID = errors.New("invalid_id")
	ErrNotFound  = errors.New("not_found")
)
