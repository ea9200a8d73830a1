package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/animegate/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindForUpdate(ctx context.Context, db *gorm.DB, userID int64) (*domain.VipGrant, error) {
	var grant domain.VipGrant
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Take(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &grant, nil
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID int64) (*domain.VipGrant, error) {
	var grant domain.VipGrant
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, remaining_days, granted_at, extended_at, accounted_at
		 FROM vip_grants WHERE user_id = ?`,
		userID,
	).Scan(&grant).Error
	if err != nil {
		return nil, err
	}
	if grant.UserID == 0 {
		return nil, nil
	}
	return &grant, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, grant *domain.VipGrant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO vip_grants (user_id, remaining_days, granted_at, extended_at, accounted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		grant.UserID,
		grant.RemainingDays,
		grant.GrantedAt,
		grant.ExtendedAt,
		grant.AccountedAt,
	).Error
}

func (r *repo) Reset(ctx context.Context, db *gorm.DB, userID int64, days int, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE vip_grants
		 SET remaining_days = ?, granted_at = ?, extended_at = NULL, accounted_at = ?
		 WHERE user_id = ?`,
		days,
		at,
		at,
		userID,
	).Error
}

func (r *repo) AddDays(ctx context.Context, db *gorm.DB, userID int64, days int, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE vip_grants SET remaining_days = remaining_days + ?, extended_at = ? WHERE user_id = ?`,
		days,
		at,
		userID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID int64) error {
	return db.WithContext(ctx).Exec(`DELETE FROM vip_grants WHERE user_id = ?`, userID).Error
}

func (r *repo) ClaimDue(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.VipGrant, error) {
	var grants []domain.VipGrant
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("accounted_at <= ?", cutoff).
		Order("accounted_at asc, user_id asc").
		Limit(limit).
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *repo) UpdateAccounting(ctx context.Context, db *gorm.DB, userID int64, remaining int, accountedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE vip_grants SET remaining_days = ?, accounted_at = ? WHERE user_id = ?`,
		remaining,
		accountedAt,
		userID,
	).Error
}
