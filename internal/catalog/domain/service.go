package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/animegate/pkg/db/pagination"
)

type CreateTitleRequest struct {
	Name          string
	EpisodesLabel string
	Country       string
	Language      string
	Year          string
	Genre         string
	Dub           string
	MediaRef      string
	MediaKind     MediaKind
}

type SearchMode string

const (
	SearchByName  SearchMode = "name"
	SearchByGenre SearchMode = "genre"
)

type SearchRequest struct {
	Mode  SearchMode
	Query string
	Limit int
}

type TitlePage struct {
	Titles  []Title
	Page    int
	Total   int64
	HasPrev bool
	HasNext bool
}

// EpisodePage is one fixed-size window of a title's episodes in ascending order.
type EpisodePage struct {
	Title    Title
	Window   pagination.Window
	Episodes []Episode
	HasPrev  bool
	HasNext  bool
	// Current is set when the page was opened for a specific episode.
	Current *Episode
}

type Direction string

const (
	DirectionPrev Direction = "prev"
	DirectionNext Direction = "next"
)

type Stats struct {
	Titles   int64 `json:"titles"`
	Episodes int64 `json:"episodes"`
}

type Service interface {
	CreateTitle(ctx context.Context, req CreateTitleRequest) (Title, error)
	// ViewTitle increments the view counter and returns the updated title.
	ViewTitle(ctx context.Context, id int64) (Title, error)
	GetTitle(ctx context.Context, id int64) (Title, error)
	GetBySlug(ctx context.Context, slug string) (Title, error)
	Search(ctx context.Context, req SearchRequest) ([]Title, error)
	Recent(ctx context.Context, limit int) ([]Title, error)
	Top(ctx context.Context, limit int) ([]Title, error)
	ListPage(ctx context.Context, page, size int) (TitlePage, error)

	EpisodePage(ctx context.Context, titleID int64, number int) (EpisodePage, error)
	ShiftWindow(ctx context.Context, titleID int64, anchor int, dir Direction) (EpisodePage, error)
	AppendEpisode(ctx context.Context, titleID int64, mediaRef string) (Episode, error)
	PutEpisode(ctx context.Context, titleID int64, number int, mediaRef string) (Episode, error)
	DeleteEpisode(ctx context.Context, titleID int64, number int) error
	Stats(ctx context.Context) (Stats, error)
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidYear     = errors.New("invalid_year")
	ErrInvalidMedia    = errors.New("invalid_media")
	ErrInvalidEpisode  = errors.New("invalid_episode")
	ErrInvalidQuery    = errors.New("invalid_query")
	ErrNotFound        = errors.New("not_found")
	ErrEpisodeNotFound = errors.New("episode_not_found")
	ErrNoPrevWindow    = errors.New("no_prev_window")
	ErrNoNextWindow    = errors.New("no_next_window")
)
