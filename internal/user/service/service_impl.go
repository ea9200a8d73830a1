package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/smallbiznis/animegate/internal/clock"
	"github.com/smallbiznis/animegate/internal/config"
	ledgerdomain "github.com/smallbiznis/animegate/internal/ledger/domain"
	"github.com/smallbiznis/animegate/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	LedgerSvc ledgerdomain.Service
	BotConfig *config.BotConfigHolder
	Clock     clock.Clock
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	ledgerSvc ledgerdomain.Service
	botConfig *config.BotConfigHolder
	clock     clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("user.service"),
		repo:      p.Repo,
		ledgerSvc: p.LedgerSvc,
		botConfig: p.BotConfig,
		clock:     clk,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.RegisterResult, error) {
	if req.ID <= 0 {
		return domain.RegisterResult{}, domain.ErrInvalidID
	}

	var result domain.RegisterResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := domain.User{
			ID:        req.ID,
			Tier:      domain.TierStandard,
			FirstName: strings.TrimSpace(req.FirstName),
			Username:  strings.TrimSpace(req.Username),
			CreatedAt: s.clock.Now(),
		}

		var referrer *domain.User
		if req.ReferrerID > 0 && req.ReferrerID != req.ID {
			found, err := s.repo.FindByID(ctx, tx, req.ReferrerID)
			if err != nil {
				return err
			}
			if found != nil {
				referrer = found
				user.ReferrerID = &found.ID
			}
		}

		created, err := s.repo.Insert(ctx, tx, &user)
		if err != nil {
			return err
		}
		if !created {
			existing, err := s.repo.FindByID(ctx, tx, req.ID)
			if err != nil {
				return err
			}
			if existing == nil {
				return domain.ErrNotFound
			}
			result = domain.RegisterResult{User: *existing}
			return nil
		}

		if err := s.ledgerSvc.OpenAccount(ctx, tx, user.ID); err != nil {
			return err
		}
		result = domain.RegisterResult{User: user, Created: true}

		bonus := s.referralBonus()
		if referrer == nil || bonus <= 0 {
			return nil
		}
		posted, err := s.ledgerSvc.Post(ctx, tx, ledgerdomain.Posting{
			UserID:     referrer.ID,
			Direction:  ledgerdomain.LedgerEntryDirectionCredit,
			Amount:     bonus,
			SourceType: ledgerdomain.SourceTypeReferralBonus,
			SourceID:   strconv.FormatInt(user.ID, 10),
			OccurredAt: user.CreatedAt,
		})
		if err != nil {
			return err
		}
		result.ReferralCredited = posted
		return nil
	})
	if err != nil {
		return domain.RegisterResult{}, err
	}

	if result.Created {
		s.log.Info("user registered",
			zap.Int64("user_id", result.User.ID),
			zap.Bool("referred", result.User.ReferrerID != nil),
		)
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.User, error) {
	if id <= 0 {
		return domain.User{}, domain.ErrInvalidID
	}
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}

func (s *Service) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 200
	}
	return s.repo.ListIDs(ctx, s.db, afterID, limit)
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	total, err := s.repo.Count(ctx, s.db, "")
	if err != nil {
		return domain.Stats{}, err
	}
	vip, err := s.repo.Count(ctx, s.db, domain.TierVIP)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{Total: total, VIP: vip}, nil
}

func (s *Service) referralBonus() int64 {
	if s.botConfig == nil {
		return 0
	}
	return s.botConfig.Get().Referral.Bonus
}
