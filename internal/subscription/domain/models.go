// Package domain contains the VIP tier grant model and purchase outcomes.
package domain

import "time"

// VipGrant tracks the remaining paid days of a VIP user. It exists only while
// the user's tier is VIP.
type VipGrant struct {
	UserID        int64      `gorm:"primaryKey;autoIncrement:false"`
	RemainingDays int        `gorm:"not null"`
	GrantedAt     time.Time  `gorm:"not null"`
	ExtendedAt    *time.Time `gorm:""`
	// AccountedAt is the last instant elapsed days were subtracted up to.
	AccountedAt time.Time `gorm:"not null;index"`
}

// TableName sets the database table name.
func (VipGrant) TableName() string { return "vip_grants" }

// ExpiresAt projects the end of the grant from the last accounting point.
func (g VipGrant) ExpiresAt() time.Time {
	return g.AccountedAt.Add(time.Duration(g.RemainingDays) * 24 * time.Hour)
}

type Outcome string

const (
	OutcomeGranted           Outcome = "granted"
	OutcomeExtended          Outcome = "extended"
	OutcomeInsufficientFunds Outcome = "insufficient_funds"
)

type PurchaseResult struct {
	Outcome       Outcome
	UserID        int64
	Days          int
	Price         int64
	RemainingDays int
	Balance       int64
}

// Succeeded reports whether the purchase changed any state.
func (r PurchaseResult) Succeeded() bool {
	return r.Outcome == OutcomeGranted || r.Outcome == OutcomeExtended
}

type Status struct {
	Active        bool
	RemainingDays int
	ExpiresAt     time.Time
}

type ExpiryResult struct {
	Processed   int
	Decremented int
	Expired     int
	LockWait    time.Duration
}
