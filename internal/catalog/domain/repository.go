package domain

import (
	"context"

	"gorm.io/gorm"
)

type TitleFilter struct {
	NameLike  string
	GenreLike string
}

type TitleOrder string

const (
	OrderRecent TitleOrder = "recent"
	OrderTop    TitleOrder = "top"
	OrderName   TitleOrder = "name"
)

type Repository interface {
	InsertTitle(ctx context.Context, db *gorm.DB, title *Title) error
	FindTitle(ctx context.Context, db *gorm.DB, id int64) (*Title, error)
	FindTitleBySlug(ctx context.Context, db *gorm.DB, slug string) (*Title, error)
	ListTitles(ctx context.Context, db *gorm.DB, filter TitleFilter, order TitleOrder, offset, limit int) ([]Title, error)
	CountTitles(ctx context.Context, db *gorm.DB) (int64, error)
	IncrementViews(ctx context.Context, db *gorm.DB, id int64) (bool, error)

	UpsertEpisode(ctx context.Context, db *gorm.DB, episode *Episode) error
	FindEpisode(ctx context.Context, db *gorm.DB, titleID int64, number int) (*Episode, error)
	DeleteEpisode(ctx context.Context, db *gorm.DB, titleID int64, number int) (bool, error)
	EpisodeWindow(ctx context.Context, db *gorm.DB, titleID int64, offset, limit int) ([]Episode, error)
	CountEpisodes(ctx context.Context, db *gorm.DB, titleID int64) (int64, error)
	MaxEpisodeNumber(ctx context.Context, db *gorm.DB, titleID int64) (int, error)
}
