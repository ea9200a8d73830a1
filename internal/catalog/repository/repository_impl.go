package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/animegate/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertTitle(ctx context.Context, db *gorm.DB, title *domain.Title) error {
	return db.WithContext(ctx).Create(title).Error
}

func (r *repo) FindTitle(ctx context.Context, db *gorm.DB, id int64) (*domain.Title, error) {
	var title domain.Title
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, genre, country, language, year, dub, episodes_label,
		        media_ref, media_kind, views, created_at
		 FROM titles WHERE id = ?`,
		id,
	).Scan(&title).Error
	if err != nil {
		return nil, err
	}
	if title.ID == 0 {
		return nil, nil
	}
	return &title, nil
}

func (r *repo) FindTitleBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Title, error) {
	var title domain.Title
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, genre, country, language, year, dub, episodes_label,
		        media_ref, media_kind, views, created_at
		 FROM titles WHERE slug = ?`,
		slug,
	).Scan(&title).Error
	if err != nil {
		return nil, err
	}
	if title.ID == 0 {
		return nil, nil
	}
	return &title, nil
}

func (r *repo) ListTitles(ctx context.Context, db *gorm.DB, filter domain.TitleFilter, order domain.TitleOrder, offset, limit int) ([]domain.Title, error) {
	var titles []domain.Title
	stmt := db.WithContext(ctx).Model(&domain.Title{})
	if q := strings.ToLower(strings.TrimSpace(filter.NameLike)); q != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+q+"%")
	}
	if q := strings.ToLower(strings.TrimSpace(filter.GenreLike)); q != "" {
		stmt = stmt.Where("LOWER(genre) LIKE ?", "%"+q+"%")
	}
	switch order {
	case domain.OrderTop:
		stmt = stmt.Order("views desc, id desc")
	case domain.OrderName:
		stmt = stmt.Order("name asc, id asc")
	default:
		stmt = stmt.Order("id desc")
	}
	if offset > 0 {
		stmt = stmt.Offset(offset)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&titles).Error; err != nil {
		return nil, err
	}
	return titles, nil
}

func (r *repo) CountTitles(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Title{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) IncrementViews(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	result := db.WithContext(ctx).Exec(`UPDATE titles SET views = views + 1 WHERE id = ?`, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) UpsertEpisode(ctx context.Context, db *gorm.DB, episode *domain.Episode) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO episodes (id, title_id, number, media_ref, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (title_id, number) DO UPDATE SET media_ref = excluded.media_ref`,
		episode.ID,
		episode.TitleID,
		episode.Number,
		episode.MediaRef,
		episode.CreatedAt,
	).Error
}

func (r *repo) FindEpisode(ctx context.Context, db *gorm.DB, titleID int64, number int) (*domain.Episode, error) {
	var episode domain.Episode
	err := db.WithContext(ctx).Raw(
		`SELECT id, title_id, number, media_ref, created_at
		 FROM episodes WHERE title_id = ? AND number = ?`,
		titleID,
		number,
	).Scan(&episode).Error
	if err != nil {
		return nil, err
	}
	if episode.ID == 0 {
		return nil, nil
	}
	return &episode, nil
}

func (r *repo) DeleteEpisode(ctx context.Context, db *gorm.DB, titleID int64, number int) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM episodes WHERE title_id = ? AND number = ?`,
		titleID,
		number,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) EpisodeWindow(ctx context.Context, db *gorm.DB, titleID int64, offset, limit int) ([]domain.Episode, error) {
	var episodes []domain.Episode
	err := db.WithContext(ctx).Raw(
		`SELECT id, title_id, number, media_ref, created_at
		 FROM episodes WHERE title_id = ?
		 ORDER BY number ASC LIMIT ? OFFSET ?`,
		titleID,
		limit,
		offset,
	).Scan(&episodes).Error
	if err != nil {
		return nil, err
	}
	return episodes, nil
}

func (r *repo) CountEpisodes(ctx context.Context, db *gorm.DB, titleID int64) (int64, error) {
	var count int64
	stmt := db.WithContext(ctx).Model(&domain.Episode{})
	if titleID != 0 {
		stmt = stmt.Where("title_id = ?", titleID)
	}
	if err := stmt.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) MaxEpisodeNumber(ctx context.Context, db *gorm.DB, titleID int64) (int, error) {
	var max int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(number), 0) FROM episodes WHERE title_id = ?`,
		titleID,
	).Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}
