package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LedgerEntryDirection represents debit or credit postings.
type LedgerEntryDirection string

const (
	LedgerEntryDirectionDebit  LedgerEntryDirection = "debit"
	LedgerEntryDirectionCredit LedgerEntryDirection = "credit"
)

type LedgerSourceType string

const (
	SourceTypeVipPurchase   LedgerSourceType = "vip_purchase"   // balance spent on a VIP plan
	SourceTypeAdminCredit   LedgerSourceType = "admin_credit"   // manual top-up by an administrator
	SourceTypeAdminDebit    LedgerSourceType = "admin_debit"    // manual correction by an administrator
	SourceTypeReferralBonus LedgerSourceType = "referral_bonus" // reward for inviting a new user
)

// Balance is the spendable amount of a user in minor currency units.
type Balance struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Amount    int64     `gorm:"not null;default:0" json:"amount"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Balance) TableName() string { return "balances" }

// LedgerEntry is the immutable record of a balance movement.
type LedgerEntry struct {
	ID         snowflake.ID         `gorm:"primaryKey" json:"id"`
	UserID     int64                `gorm:"not null;uniqueIndex:ux_ledger_entries_source,priority:1" json:"user_id"`
	Direction  LedgerEntryDirection `gorm:"type:text;not null" json:"direction"`
	Amount     int64                `gorm:"not null" json:"amount"`
	SourceType LedgerSourceType     `gorm:"type:text;not null;uniqueIndex:ux_ledger_entries_source,priority:2" json:"source_type"`
	SourceID   string               `gorm:"type:text;not null;uniqueIndex:ux_ledger_entries_source,priority:3" json:"source_id"`
	OccurredAt time.Time            `gorm:"not null" json:"occurred_at"`
	CreatedAt  time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// Posting describes one balance movement. SourceType and SourceID make it idempotent.
type Posting struct {
	UserID     int64
	Direction  LedgerEntryDirection
	Amount     int64
	SourceType LedgerSourceType
	SourceID   string
	OccurredAt time.Time
}
