package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/animegate/internal/authorization"
	"github.com/smallbiznis/animegate/internal/cache"
	"github.com/smallbiznis/animegate/internal/clock"
	"github.com/smallbiznis/animegate/internal/config"
	"github.com/smallbiznis/animegate/internal/gate/domain"
	obsmetrics "github.com/smallbiznis/animegate/internal/observability/metrics"
	userdomain "github.com/smallbiznis/animegate/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       domain.Repository
	UserRepo   userdomain.Repository
	BotConfig  *config.BotConfigHolder
	Checker    domain.MembershipChecker
	Clock      clock.Clock
	Cache      *cache.MembershipCache `optional:"true"`
	Authz      authorization.Service  `optional:"true"`
	ObsMetrics *obsmetrics.Metrics    `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	userRepo   userdomain.Repository
	botConfig  *config.BotConfigHolder
	checker    domain.MembershipChecker
	clock      clock.Clock
	cache      *cache.MembershipCache
	authz      authorization.Service
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("gate.service"),
		repo:       p.Repo,
		userRepo:   p.UserRepo,
		botConfig:  p.BotConfig,
		checker:    p.Checker,
		clock:      clk,
		cache:      p.Cache,
		authz:      p.Authz,
		obsMetrics: p.ObsMetrics,
	}
}

// Check evaluates every configured channel. A transport failure counts as
// not subscribed for that channel only.
func (s *Service) Check(ctx context.Context, userID int64) (domain.Result, error) {
	if userID <= 0 {
		return domain.Result{}, domain.ErrInvalidUser
	}

	cfg := s.botConfig.Get()
	if len(cfg.Channels) == 0 {
		return domain.Result{Passed: true}, nil
	}

	exempt, err := s.exempt(ctx, cfg, userID)
	if err != nil {
		return domain.Result{}, err
	}
	if exempt {
		return domain.Result{Passed: true}, nil
	}

	missing := make([]config.Channel, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		ok, err := s.satisfied(ctx, ch, userID)
		if err != nil {
			return domain.Result{}, err
		}
		if !ok {
			missing = append(missing, ch)
		}
	}

	result := domain.Result{Passed: len(missing) == 0}
	if !result.Passed {
		result.Missing = missing
		result.Promo = promoLink(cfg.Promo)
	}
	s.obsMetrics.RecordGateCheck(ctx, result.Passed)
	return result, nil
}

func (s *Service) RecordJoinRequest(ctx context.Context, channelID, userID int64) error {
	if channelID == 0 {
		return domain.ErrInvalidChannel
	}
	if userID <= 0 {
		return domain.ErrInvalidUser
	}
	if err := s.repo.Insert(ctx, s.db, &domain.JoinRequest{
		ChannelID: channelID,
		UserID:    userID,
		CreatedAt: s.clock.Now(),
	}); err != nil {
		return err
	}
	s.log.Debug("join request recorded", zap.Int64("channel_id", channelID), zap.Int64("user_id", userID))
	return nil
}

func (s *Service) exempt(ctx context.Context, cfg config.BotConfig, userID int64) (bool, error) {
	if cfg.IsAdmin(userID) {
		return true, nil
	}
	if s.authz != nil && s.authz.IsAdmin(ctx, userID) {
		return true, nil
	}
	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return false, err
	}
	return user != nil && user.IsVIP(), nil
}

func (s *Service) satisfied(ctx context.Context, ch config.Channel, userID int64) (bool, error) {
	if ch.Mode == config.ChannelModeRequest {
		return s.repo.Exists(ctx, s.db, ch.ID, userID)
	}

	if member, ok, err := s.cache.Get(ctx, ch.ID, userID); err != nil {
		s.log.Warn("membership cache read failed", zap.Int64("channel_id", ch.ID), zap.Error(err))
	} else if ok {
		return member, nil
	}

	member, err := s.checker.IsMember(ctx, ch.ID, userID)
	if err != nil {
		s.log.Warn("membership check failed",
			zap.Int64("channel_id", ch.ID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return false, nil
	}
	if err := s.cache.Set(ctx, ch.ID, userID, member); err != nil {
		s.log.Warn("membership cache write failed", zap.Int64("channel_id", ch.ID), zap.Error(err))
	}
	return member, nil
}

// promoLink prefers instagram and never returns more than one link.
func promoLink(p config.PromoLinks) *domain.PromoLink {
	if url := strings.TrimSpace(p.Instagram); url != "" {
		return &domain.PromoLink{Kind: domain.PromoInstagram, URL: url}
	}
	if url := strings.TrimSpace(p.Youtube); url != "" {
		return &domain.PromoLink{Kind: domain.PromoYoutube, URL: url}
	}
	return nil
}
