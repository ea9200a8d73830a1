package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Mode string

const (
	ModeCopy    Mode = "copy"
	ModeForward Mode = "forward"
)

// singletonKey is the only value the primary key may take, so the table
// holds at most one in-flight job.
const singletonKey = 1

type Job struct {
	Singleton     int16        `gorm:"primaryKey;autoIncrement:false;check:chk_broadcast_jobs_singleton,singleton = 1"`
	ID            snowflake.ID `gorm:"not null;uniqueIndex"`
	AdminID       int64        `gorm:"not null"`
	SourceChat    int64        `gorm:"not null"`
	SourceMessage int          `gorm:"not null"`
	Mode          Mode         `gorm:"type:text;not null;default:'copy'"`
	Sent          int          `gorm:"not null;default:0"`
	Failed        int          `gorm:"not null;default:0"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	// HeartbeatAt advances with every recorded page and on a periodic tick.
	HeartbeatAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Job) TableName() string { return "broadcast_jobs" }

// NewJob returns a job bound to the singleton slot.
func NewJob(id snowflake.ID, adminID, sourceChat int64, sourceMessage int, mode Mode, at time.Time) Job {
	return Job{
		Singleton:     singletonKey,
		ID:            id,
		AdminID:       adminID,
		SourceChat:    sourceChat,
		SourceMessage: sourceMessage,
		Mode:          mode,
		CreatedAt:     at,
		HeartbeatAt:   at,
	}
}

type Report struct {
	Sent     int
	Failed   int
	Aborted  bool
	Duration time.Duration
}
