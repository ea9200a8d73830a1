package domain

import (
	"context"
	"errors"
	"time"
)

type StartRequest struct {
	AdminID       int64
	SourceChat    int64
	SourceMessage int
	Mode          Mode
}

// Sender delivers the broadcast message and reports the outcome.
type Sender interface {
	Deliver(ctx context.Context, job Job, recipientID int64) error
	Finished(ctx context.Context, job Job, report Report)
}

// Recipients pages through every user id in ascending order.
type Recipients interface {
	ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

type Service interface {
	Start(ctx context.Context, req StartRequest) (Job, error)
	Current(ctx context.Context) (*Job, error)
	// Abort stops the running job. The slot is released by the runner.
	Abort(ctx context.Context) error
	// ReleaseStale frees a slot left behind by a runner that stopped
	// reporting progress before cutoff, for example after a crash. Jobs run
	// by this process are never released.
	ReleaseStale(ctx context.Context, cutoff time.Time) (*Job, error)
	// Wait blocks until every runner started by this process returned.
	Wait()
}

var (
	ErrAlreadyRunning = errors.New("broadcast_already_running")
	ErrNotRunning     = errors.New("broadcast_not_running")
	ErrInvalidSource  = errors.New("invalid_source")
	ErrInvalidAdmin   = errors.New("invalid_admin")
)
