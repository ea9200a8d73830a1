package domain

import (
	"context"
	"errors"
)

const (
	ActionBalanceCredited = "balance.credited"
	ActionBalanceDebited  = "balance.debited"
	ActionAdminGranted    = "admin.granted"
	ActionAdminRevoked    = "admin.revoked"
	ActionTitleCreated    = "title.created"
	ActionEpisodeAdded    = "episode.added"
	ActionEpisodeDeleted  = "episode.deleted"
	ActionBroadcastStart  = "broadcast.started"
	ActionBroadcastFreed  = "broadcast.released"
)

type ListAuditLogRequest struct {
	Action     string
	TargetType string
	TargetID   string
	ActorID    string
	Limit      int
}

type Service interface {
	AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) ([]AuditLog, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
)
