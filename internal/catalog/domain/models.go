package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type MediaKind string

const (
	MediaKindPhoto MediaKind = "photo"
	MediaKindVideo MediaKind = "video"
)

// EpisodeWindowSize is the number of episode buttons shown per page.
const EpisodeWindowSize = 25

// Title is a catalogue entry. Its numeric ID doubles as the public search code.
type Title struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"type:text;not null;index" json:"name"`
	Slug          string    `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Genre         string    `gorm:"type:text;not null;default:''" json:"genre"`
	Country       string    `gorm:"type:text;not null;default:''" json:"country"`
	Language      string    `gorm:"type:text;not null;default:''" json:"language"`
	Year          int       `gorm:"not null;default:0" json:"year"`
	Dub           string    `gorm:"type:text;not null;default:''" json:"dub"`
	EpisodesLabel string    `gorm:"type:text;not null;default:''" json:"episodes_label"`
	MediaRef      string    `gorm:"type:text;not null" json:"-"`
	MediaKind     MediaKind `gorm:"type:text;not null;default:'photo'" json:"media_kind"`
	Views         int64     `gorm:"not null;default:0" json:"views"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Title) TableName() string { return "titles" }

// Episode references a transport video by file id.
type Episode struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TitleID   int64        `gorm:"not null;uniqueIndex:ux_episodes_title_number,priority:1" json:"title_id"`
	Number    int          `gorm:"not null;uniqueIndex:ux_episodes_title_number,priority:2" json:"number"`
	MediaRef  string       `gorm:"type:text;not null" json:"-"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Episode) TableName() string { return "episodes" }
