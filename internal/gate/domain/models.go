package domain

import (
	"time"

	"github.com/smallbiznis/animegate/internal/config"
)

// JoinRequest proves a user asked to join a request-mode channel.
type JoinRequest struct {
	ChannelID int64     `gorm:"primaryKey;autoIncrement:false"`
	UserID    int64     `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (JoinRequest) TableName() string { return "join_requests" }

type PromoKind string

const (
	PromoInstagram PromoKind = "instagram"
	PromoYoutube   PromoKind = "youtube"
)

type PromoLink struct {
	Kind PromoKind
	URL  string
}

// Result is the outcome of one gate evaluation. Missing keeps the configured
// channel order; Promo is set only when the user is blocked.
type Result struct {
	Passed  bool
	Missing []config.Channel
	Promo   *PromoLink
}

// RecheckFrames are the progress percentages shown before a recheck.
var RecheckFrames = []int{0, 15, 30, 45, 60, 75, 90}
