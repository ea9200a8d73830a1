package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/animegate/internal/clock"
	"github.com/smallbiznis/animegate/internal/config"
	ledgerdomain "github.com/smallbiznis/animegate/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/animegate/internal/observability/metrics"
	"github.com/smallbiznis/animegate/internal/subscription/domain"
	userdomain "github.com/smallbiznis/animegate/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxPlanDays      = 3650
	notifyTimeout    = 15 * time.Second
	day              = 24 * time.Hour
	defaultClaimSize = 100
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	UserRepo   userdomain.Repository
	LedgerSvc  ledgerdomain.Service
	BotConfig  *config.BotConfigHolder
	Clock      clock.Clock
	Notifier   domain.Notifier     `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	userRepo   userdomain.Repository
	ledgerSvc  ledgerdomain.Service
	botConfig  *config.BotConfigHolder
	clock      clock.Clock
	notifier   domain.Notifier
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("subscription.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		userRepo:   p.UserRepo,
		ledgerSvc:  p.LedgerSvc,
		botConfig:  p.BotConfig,
		clock:      clk,
		notifier:   p.Notifier,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Quote(days int) (int64, error) {
	if days <= 0 || days > maxPlanDays {
		return 0, domain.ErrInvalidDays
	}
	vip := s.botConfig.Get().VIP
	return Prorate(vip.BasePrice, vip.BasePeriodDays, days)
}

// Prorate scales a per-period price to days, rounding half up in minor units.
func Prorate(basePrice int64, periodDays, days int) (int64, error) {
	if basePrice <= 0 || periodDays <= 0 {
		return 0, domain.ErrInvalidPrice
	}
	if days <= 0 {
		return 0, domain.ErrInvalidDays
	}
	numerator := basePrice * int64(days)
	period := int64(periodDays)
	price := (2*numerator + period) / (2 * period)
	if price <= 0 {
		// a plan that rounds down to nothing cannot be debited
		return 0, domain.ErrInvalidPrice
	}
	return price, nil
}

func (s *Service) Purchase(ctx context.Context, req domain.PurchaseRequest) (domain.PurchaseResult, error) {
	if req.UserID == 0 {
		return domain.PurchaseResult{}, domain.ErrInvalidUser
	}
	price, err := s.Quote(req.Days)
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	result := domain.PurchaseResult{UserID: req.UserID, Days: req.Days, Price: price}
	now := s.clock.Now()
	purchaseID := s.genID.Generate()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.FindByID(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.ErrUserNotFound
		}

		balance, err := s.ledgerSvc.LockBalance(ctx, tx, req.UserID)
		if err != nil {
			if errors.Is(err, ledgerdomain.ErrAccountNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		if balance.Amount < price {
			result.Outcome = domain.OutcomeInsufficientFunds
			result.Balance = balance.Amount
			return nil
		}

		grant, err := s.repo.FindForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		switch {
		case grant == nil:
			result.Outcome = domain.OutcomeGranted
			result.RemainingDays = req.Days
			if err := s.repo.Insert(ctx, tx, &domain.VipGrant{
				UserID:        req.UserID,
				RemainingDays: req.Days,
				GrantedAt:     now,
				AccountedAt:   now,
			}); err != nil {
				return err
			}
		case user.IsVIP():
			result.Outcome = domain.OutcomeExtended
			result.RemainingDays = grant.RemainingDays + req.Days
			if err := s.repo.AddDays(ctx, tx, req.UserID, req.Days, now); err != nil {
				return err
			}
		default:
			// a grant left behind for a standard user is restarted, not extended
			result.Outcome = domain.OutcomeGranted
			result.RemainingDays = req.Days
			if err := s.repo.Reset(ctx, tx, req.UserID, req.Days, now); err != nil {
				return err
			}
		}

		if !user.IsVIP() {
			if err := s.userRepo.SetTier(ctx, tx, req.UserID, userdomain.TierVIP); err != nil {
				return err
			}
		}

		if _, err := s.ledgerSvc.Post(ctx, tx, ledgerdomain.Posting{
			UserID:     req.UserID,
			Direction:  ledgerdomain.LedgerEntryDirectionDebit,
			Amount:     price,
			SourceType: ledgerdomain.SourceTypeVipPurchase,
			SourceID:   purchaseID.String(),
			OccurredAt: now,
		}); err != nil {
			return err
		}
		result.Balance = balance.Amount - price
		return nil
	})
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrInsufficientFunds) {
			// the debit guard caught a concurrent spend; nothing was committed
			result.Outcome = domain.OutcomeInsufficientFunds
			result.RemainingDays = 0
			s.obsMetrics.RecordVIPPurchase(ctx, string(result.Outcome))
			return result, nil
		}
		return domain.PurchaseResult{}, err
	}

	s.obsMetrics.RecordVIPPurchase(ctx, string(result.Outcome))
	if !result.Succeeded() {
		return result, nil
	}

	s.log.Info("vip purchased",
		zap.Int64("user_id", result.UserID),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("days", result.Days),
		zap.Int("remaining_days", result.RemainingDays),
	)
	s.notifyAsync(ctx, result)
	return result, nil
}

func (s *Service) notifyAsync(ctx context.Context, result domain.PurchaseResult) {
	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("purchase notifier panicked", zap.Any("panic", r))
			}
		}()
		if err := s.notifier.NotifyPurchase(notifyCtx, result); err != nil {
			s.log.Warn("purchase notification failed", zap.Int64("user_id", result.UserID), zap.Error(err))
		}
	}()
}

func (s *Service) Status(ctx context.Context, userID int64) (domain.Status, error) {
	if userID == 0 {
		return domain.Status{}, domain.ErrInvalidUser
	}
	grant, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return domain.Status{}, err
	}
	if grant == nil {
		return domain.Status{}, nil
	}
	return domain.Status{
		Active:        grant.RemainingDays > 0,
		RemainingDays: grant.RemainingDays,
		ExpiresAt:     grant.ExpiresAt(),
	}, nil
}

func (s *Service) ExpireDue(ctx context.Context, now time.Time, limit int) (domain.ExpiryResult, error) {
	if limit <= 0 {
		limit = defaultClaimSize
	}
	now = now.UTC()
	var result domain.ExpiryResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimStart := time.Now()
		grants, err := s.repo.ClaimDue(ctx, tx, now.Add(-day), limit)
		result.LockWait = time.Since(claimStart)
		if err != nil {
			return err
		}

		for _, grant := range grants {
			elapsed := int(now.Sub(grant.AccountedAt) / day)
			if elapsed <= 0 {
				continue
			}
			result.Processed++

			remaining := grant.RemainingDays - elapsed
			if remaining > 0 {
				accountedAt := grant.AccountedAt.Add(time.Duration(elapsed) * day)
				if err := s.repo.UpdateAccounting(ctx, tx, grant.UserID, remaining, accountedAt); err != nil {
					return err
				}
				result.Decremented++
				continue
			}

			if err := s.repo.Delete(ctx, tx, grant.UserID); err != nil {
				return err
			}
			if err := s.userRepo.SetTier(ctx, tx, grant.UserID, userdomain.TierStandard); err != nil && !errors.Is(err, userdomain.ErrNotFound) {
				return err
			}
			result.Expired++
		}
		return nil
	})
	if err != nil {
		return domain.ExpiryResult{}, err
	}
	if result.Expired > 0 {
		s.log.Info("vip grants expired", zap.Int("expired", result.Expired), zap.Int("processed", result.Processed))
	}
	return result, nil
}
