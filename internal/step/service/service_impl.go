package service

import (
	"context"

	"github.com/smallbiznis/animegate/internal/clock"
	"github.com/smallbiznis/animegate/internal/step/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
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
		log:   p.Log.Named("step.service"),
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) Get(ctx context.Context, userID int64) (domain.Step, error) {
	if userID == 0 {
		return domain.Step{}, domain.ErrInvalidUser
	}
	record, err := s.repo.Find(ctx, s.db, userID)
	if err != nil {
		return domain.Step{}, err
	}
	if record == nil {
		return domain.Idle(), nil
	}
	step := record.Step()
	if !step.Flow.Valid() {
		// rows written by an older release are treated as no pending flow
		s.log.Warn("discarding unknown step flow", zap.Int64("user_id", userID), zap.String("flow", string(step.Flow)))
		return domain.Idle(), nil
	}
	return step, nil
}

func (s *Service) Set(ctx context.Context, userID int64, step domain.Step) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	if step.IsIdle() {
		return s.Clear(ctx, userID)
	}
	if !step.Flow.Valid() {
		return domain.ErrInvalidFlow
	}
	fields := datatypes.JSONMap{}
	for k, v := range step.Fields {
		fields[k] = v
	}
	return s.repo.Upsert(ctx, s.db, &domain.Record{
		UserID:    userID,
		Flow:      step.Flow,
		Stage:     step.Stage,
		Fields:    fields,
		UpdatedAt: s.clock.Now(),
	})
}

func (s *Service) Clear(ctx context.Context, userID int64) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	return s.repo.Delete(ctx, s.db, userID)
}
