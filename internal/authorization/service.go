package authorization

import (
	"context"
	"errors"
)

type Service interface {
	Authorize(ctx context.Context, userID int64, object string, action string) error
	IsAdmin(ctx context.Context, userID int64) bool
	IsOwner(ctx context.Context, userID int64) bool
	GrantAdmin(ctx context.Context, actorID int64, userID int64) error
	RevokeAdmin(ctx context.Context, actorID int64, userID int64) error
	Admins(ctx context.Context) ([]int64, error)
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
