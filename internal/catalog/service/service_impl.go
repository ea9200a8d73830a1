package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/animegate/internal/catalog/domain"
	"github.com/smallbiznis/animegate/internal/clock"
	"github.com/smallbiznis/animegate/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	minYear            = 1900
	maxYear            = 2100
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) CreateTitle(ctx context.Context, req domain.CreateTitleRequest) (domain.Title, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Title{}, domain.ErrInvalidName
	}
	year, err := ParseYear(req.Year)
	if err != nil {
		return domain.Title{}, err
	}
	mediaRef := strings.TrimSpace(req.MediaRef)
	if mediaRef == "" {
		return domain.Title{}, domain.ErrInvalidMedia
	}
	kind := req.MediaKind
	if kind != domain.MediaKindPhoto && kind != domain.MediaKindVideo {
		return domain.Title{}, domain.ErrInvalidMedia
	}

	title := domain.Title{
		Name:          name,
		Slug:          uuid.NewString(),
		Genre:         strings.TrimSpace(req.Genre),
		Country:       strings.TrimSpace(req.Country),
		Language:      strings.TrimSpace(req.Language),
		Year:          year,
		Dub:           strings.TrimSpace(req.Dub),
		EpisodesLabel: strings.TrimSpace(req.EpisodesLabel),
		MediaRef:      mediaRef,
		MediaKind:     kind,
		CreatedAt:     s.clock.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertTitle(ctx, tx, &title); err != nil {
			return err
		}
		title.Slug = titleSlug(title.Name, title.ID)
		return tx.WithContext(ctx).Exec(`UPDATE titles SET slug = ? WHERE id = ?`, title.Slug, title.ID).Error
	})
	if err != nil {
		return domain.Title{}, err
	}

	s.log.Info("title created", zap.Int64("title_id", title.ID), zap.String("slug", title.Slug))
	return title, nil
}

func (s *Service) ViewTitle(ctx context.Context, id int64) (domain.Title, error) {
	if id <= 0 {
		return domain.Title{}, domain.ErrInvalidID
	}
	var title domain.Title
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.IncrementViews(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}
		found, err := s.repo.FindTitle(ctx, tx, id)
		if err != nil {
			return err
		}
		if found == nil {
			return domain.ErrNotFound
		}
		title = *found
		return nil
	})
	if err != nil {
		return domain.Title{}, err
	}
	return title, nil
}

func (s *Service) GetTitle(ctx context.Context, id int64) (domain.Title, error) {
	if id <= 0 {
		return domain.Title{}, domain.ErrInvalidID
	}
	title, err := s.repo.FindTitle(ctx, s.db, id)
	if err != nil {
		return domain.Title{}, err
	}
	if title == nil {
		return domain.Title{}, domain.ErrNotFound
	}
	return *title, nil
}

func (s *Service) GetBySlug(ctx context.Context, value string) (domain.Title, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Title{}, domain.ErrInvalidID
	}
	title, err := s.repo.FindTitleBySlug(ctx, s.db, value)
	if err != nil {
		return domain.Title{}, err
	}
	if title == nil {
		return domain.Title{}, domain.ErrNotFound
	}
	return *title, nil
}

func (s *Service) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Title, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.ErrInvalidQuery
	}
	filter := domain.TitleFilter{}
	switch req.Mode {
	case domain.SearchByGenre:
		filter.GenreLike = query
	default:
		filter.NameLike = query
	}
	return s.repo.ListTitles(ctx, s.db, filter, domain.OrderTop, 0, clampLimit(req.Limit))
}

func (s *Service) Recent(ctx context.Context, limit int) ([]domain.Title, error) {
	return s.repo.ListTitles(ctx, s.db, domain.TitleFilter{}, domain.OrderRecent, 0, clampLimit(limit))
}

func (s *Service) Top(ctx context.Context, limit int) ([]domain.Title, error) {
	return s.repo.ListTitles(ctx, s.db, domain.TitleFilter{}, domain.OrderTop, 0, clampLimit(limit))
}

func (s *Service) ListPage(ctx context.Context, page, size int) (domain.TitlePage, error) {
	p := pagination.Pagination{Page: page, PageSize: size}.Normalize()
	// one extra row tells whether a next page exists
	titles, err := s.repo.ListTitles(ctx, s.db, domain.TitleFilter{}, domain.OrderName, p.Offset(), p.PageSize+1)
	if err != nil {
		return domain.TitlePage{}, err
	}
	hasNext := len(titles) > p.PageSize
	if hasNext {
		titles = titles[:p.PageSize]
	}
	total, err := s.repo.CountTitles(ctx, s.db)
	if err != nil {
		return domain.TitlePage{}, err
	}
	return domain.TitlePage{
		Titles:  titles,
		Page:    p.Page,
		Total:   total,
		HasPrev: p.Page > 1,
		HasNext: hasNext,
	}, nil
}

func (s *Service) EpisodePage(ctx context.Context, titleID int64, number int) (domain.EpisodePage, error) {
	if titleID <= 0 {
		return domain.EpisodePage{}, domain.ErrInvalidID
	}
	if number <= 0 {
		return domain.EpisodePage{}, domain.ErrInvalidEpisode
	}
	title, err := s.GetTitle(ctx, titleID)
	if err != nil {
		return domain.EpisodePage{}, err
	}
	current, err := s.repo.FindEpisode(ctx, s.db, titleID, number)
	if err != nil {
		return domain.EpisodePage{}, err
	}
	if current == nil {
		return domain.EpisodePage{}, domain.ErrEpisodeNotFound
	}

	page, err := s.loadWindow(ctx, title, pagination.WindowFor(number, domain.EpisodeWindowSize))
	if err != nil {
		return domain.EpisodePage{}, err
	}
	page.Current = current
	return page, nil
}

func (s *Service) ShiftWindow(ctx context.Context, titleID int64, anchor int, dir domain.Direction) (domain.EpisodePage, error) {
	if titleID <= 0 {
		return domain.EpisodePage{}, domain.ErrInvalidID
	}
	title, err := s.GetTitle(ctx, titleID)
	if err != nil {
		return domain.EpisodePage{}, err
	}

	window := pagination.WindowFor(anchor, domain.EpisodeWindowSize)
	switch dir {
	case domain.DirectionPrev:
		prev, ok := window.Prev()
		if !ok {
			return domain.EpisodePage{}, domain.ErrNoPrevWindow
		}
		window = prev
	case domain.DirectionNext:
		total, err := s.repo.CountEpisodes(ctx, s.db, titleID)
		if err != nil {
			return domain.EpisodePage{}, err
		}
		next := window.Next()
		if int64(next.Offset) >= total {
			return domain.EpisodePage{}, domain.ErrNoNextWindow
		}
		window = next
	default:
		return domain.EpisodePage{}, domain.ErrInvalidEpisode
	}
	return s.loadWindow(ctx, title, window)
}

func (s *Service) loadWindow(ctx context.Context, title domain.Title, window pagination.Window) (domain.EpisodePage, error) {
	episodes, err := s.repo.EpisodeWindow(ctx, s.db, title.ID, window.Offset, window.Size)
	if err != nil {
		return domain.EpisodePage{}, err
	}
	total, err := s.repo.CountEpisodes(ctx, s.db, title.ID)
	if err != nil {
		return domain.EpisodePage{}, err
	}
	return domain.EpisodePage{
		Title:    title,
		Window:   window,
		Episodes: episodes,
		HasPrev:  window.Index > 0,
		HasNext:  int64(window.Offset+window.Size) < total,
	}, nil
}

func (s *Service) AppendEpisode(ctx context.Context, titleID int64, mediaRef string) (domain.Episode, error) {
	mediaRef = strings.TrimSpace(mediaRef)
	if mediaRef == "" {
		return domain.Episode{}, domain.ErrInvalidMedia
	}
	if _, err := s.GetTitle(ctx, titleID); err != nil {
		return domain.Episode{}, err
	}

	var episode domain.Episode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		max, err := s.repo.MaxEpisodeNumber(ctx, tx, titleID)
		if err != nil {
			return err
		}
		episode = domain.Episode{
			ID:        s.genID.Generate(),
			TitleID:   titleID,
			Number:    max + 1,
			MediaRef:  mediaRef,
			CreatedAt: s.clock.Now(),
		}
		return s.repo.UpsertEpisode(ctx, tx, &episode)
	})
	if err != nil {
		return domain.Episode{}, err
	}
	return episode, nil
}

func (s *Service) PutEpisode(ctx context.Context, titleID int64, number int, mediaRef string) (domain.Episode, error) {
	if number <= 0 {
		return domain.Episode{}, domain.ErrInvalidEpisode
	}
	mediaRef = strings.TrimSpace(mediaRef)
	if mediaRef == "" {
		return domain.Episode{}, domain.ErrInvalidMedia
	}
	if _, err := s.GetTitle(ctx, titleID); err != nil {
		return domain.Episode{}, err
	}
	episode := domain.Episode{
		ID:        s.genID.Generate(),
		TitleID:   titleID,
		Number:    number,
		MediaRef:  mediaRef,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.UpsertEpisode(ctx, s.db, &episode); err != nil {
		return domain.Episode{}, err
	}
	stored, err := s.repo.FindEpisode(ctx, s.db, titleID, number)
	if err != nil {
		return domain.Episode{}, err
	}
	if stored == nil {
		return domain.Episode{}, domain.ErrEpisodeNotFound
	}
	return *stored, nil
}

func (s *Service) DeleteEpisode(ctx context.Context, titleID int64, number int) error {
	if titleID <= 0 || number <= 0 {
		return domain.ErrInvalidEpisode
	}
	ok, err := s.repo.DeleteEpisode(ctx, s.db, titleID, number)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrEpisodeNotFound
	}
	s.log.Info("episode deleted", zap.Int64("title_id", titleID), zap.Int("number", number))
	return nil
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	titles, err := s.repo.CountTitles(ctx, s.db)
	if err != nil {
		return domain.Stats{}, err
	}
	episodes, err := s.repo.CountEpisodes(ctx, s.db, 0)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{Titles: titles, Episodes: episodes}, nil
}

// ParseYear validates a free-text release year.
func ParseYear(raw string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || year < minYear || year > maxYear {
		return 0, domain.ErrInvalidYear
	}
	return year, nil
}

func titleSlug(name string, id int64) string {
	base := slug.Make(name)
	if base == "" {
		base = "title"
	}
	return base + "-" + strconv.FormatInt(id, 10)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultSearchLimit
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}
