package domain

import (
	"context"
	"errors"
)

// MembershipChecker asks the transport whether a user belongs to a channel.
type MembershipChecker interface {
	IsMember(ctx context.Context, channelID, userID int64) (bool, error)
}

type Service interface {
	Check(ctx context.Context, userID int64) (Result, error)
	RecordJoinRequest(ctx context.Context, channelID, userID int64) error
}

var (
	ErrInvalidUser    = errors.New("invalid_user")
	ErrInvalidChannel = errors.New("invalid_channel")
)
