package domain

import (
	"context"
	"errors"
	"time"
)

type PurchaseRequest struct {
	UserID int64
	Days   int
}

type Service interface {
	// Quote returns the price of a plan in minor currency units.
	Quote(days int) (int64, error)
	Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error)
	Status(ctx context.Context, userID int64) (Status, error)
	ExpireDue(ctx context.Context, now time.Time, limit int) (ExpiryResult, error)
}

// Notifier is told about every successful purchase after it commits.
type Notifier interface {
	NotifyPurchase(ctx context.Context, result PurchaseResult) error
}

var (
	ErrInvalidUser  = errors.New("invalid_user")
	ErrInvalidDays  = errors.New("invalid_days")
	ErrInvalidPrice = errors.New("invalid_price")
	ErrUserNotFound = errors.New("user_not_found")
)
