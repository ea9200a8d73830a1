package domain

import "time"

type Tier string

const (
	TierStandard Tier = "standard"
	TierVIP      Tier = "vip"
)

// User is created on first contact and never deleted.
type User struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Tier       Tier      `gorm:"type:text;not null;default:'standard';index" json:"tier"`
	ReferrerID *int64    `gorm:"index" json:"referrer_id,omitempty"`
	FirstName  string    `gorm:"type:text;not null;default:''" json:"first_name"`
	Username   string    `gorm:"type:text;not null;default:''" json:"username"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (User) TableName() string { return "users" }

func (u User) IsVIP() bool {
	return u.Tier == TierVIP
}
