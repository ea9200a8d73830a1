package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/animegate/internal/clock"
	ledgerdomain "github.com/smallbiznis/animegate/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/animegate/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) OpenAccount(ctx context.Context, tx *gorm.DB, userID int64) error {
	if userID == 0 {
		return ledgerdomain.ErrInvalidUser
	}
	return tx.WithContext(ctx).Exec(
		`INSERT INTO balances (user_id, amount, updated_at) VALUES (?, 0, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID,
		s.clock.Now(),
	).Error
}

func (s *Service) LockBalance(ctx context.Context, tx *gorm.DB, userID int64) (ledgerdomain.Balance, error) {
	if userID == 0 {
		return ledgerdomain.Balance{}, ledgerdomain.ErrInvalidUser
	}
	var balance ledgerdomain.Balance
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Take(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledgerdomain.Balance{}, ledgerdomain.ErrAccountNotFound
		}
		return ledgerdomain.Balance{}, err
	}
	return balance, nil
}

func (s *Service) Post(ctx context.Context, tx *gorm.DB, posting ledgerdomain.Posting) (bool, error) {
	normalized, err := s.normalize(posting)
	if err != nil {
		return false, err
	}

	result := tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (
			id, user_id, direction, amount, source_type, source_id, occurred_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, source_type, source_id) DO NOTHING`,
		s.genID.Generate(),
		normalized.UserID,
		string(normalized.Direction),
		normalized.Amount,
		string(normalized.SourceType),
		normalized.SourceID,
		normalized.OccurredAt,
		s.clock.Now(),
	)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	switch normalized.Direction {
	case ledgerdomain.LedgerEntryDirectionCredit:
		result = tx.WithContext(ctx).Exec(
			`UPDATE balances SET amount = amount + ?, updated_at = ? WHERE user_id = ?`,
			normalized.Amount,
			s.clock.Now(),
			normalized.UserID,
		)
		if result.Error != nil {
			return false, result.Error
		}
		if result.RowsAffected == 0 {
			return false, ledgerdomain.ErrAccountNotFound
		}
	case ledgerdomain.LedgerEntryDirectionDebit:
		result = tx.WithContext(ctx).Exec(
			`UPDATE balances SET amount = amount - ?, updated_at = ?
			 WHERE user_id = ? AND amount >= ?`,
			normalized.Amount,
			s.clock.Now(),
			normalized.UserID,
			normalized.Amount,
		)
		if result.Error != nil {
			return false, result.Error
		}
		if result.RowsAffected == 0 {
			exists, err := s.accountExists(ctx, tx, normalized.UserID)
			if err != nil {
				return false, err
			}
			if !exists {
				return false, ledgerdomain.ErrAccountNotFound
			}
			return false, ledgerdomain.ErrInsufficientFunds
		}
	}

	s.obsMetrics.RecordLedgerEntry(ctx, string(normalized.SourceType), string(normalized.Direction))
	return true, nil
}

func (s *Service) Apply(ctx context.Context, posting ledgerdomain.Posting) (ledgerdomain.Balance, error) {
	var balance ledgerdomain.Balance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		posted, err := s.Post(ctx, tx, posting)
		if err != nil {
			return err
		}
		if !posted {
			s.log.Info("ledger posting already applied",
				zap.Int64("user_id", posting.UserID),
				zap.String("source_type", string(posting.SourceType)),
				zap.String("source_id", posting.SourceID),
			)
		}
		current, err := s.loadBalance(ctx, tx, posting.UserID)
		if err != nil {
			return err
		}
		balance = current
		return nil
	})
	if err != nil {
		return ledgerdomain.Balance{}, err
	}
	return balance, nil
}

func (s *Service) Balance(ctx context.Context, userID int64) (ledgerdomain.Balance, error) {
	if userID == 0 {
		return ledgerdomain.Balance{}, ledgerdomain.ErrInvalidUser
	}
	return s.loadBalance(ctx, s.db, userID)
}

func (s *Service) Entries(ctx context.Context, userID int64, limit int) ([]ledgerdomain.LedgerEntry, error) {
	if userID == 0 {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var entries []ledgerdomain.LedgerEntry
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, user_id, direction, amount, source_type, source_id, occurred_at, created_at
		 FROM ledger_entries WHERE user_id = ?
		 ORDER BY occurred_at DESC, id DESC LIMIT ?`,
		userID,
		limit,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) Total(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Raw(`SELECT COALESCE(SUM(amount), 0) FROM balances`).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) loadBalance(ctx context.Context, db *gorm.DB, userID int64) (ledgerdomain.Balance, error) {
	var balance ledgerdomain.Balance
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, amount, updated_at FROM balances WHERE user_id = ?`,
		userID,
	).Scan(&balance).Error
	if err != nil {
		return ledgerdomain.Balance{}, err
	}
	if balance.UserID == 0 {
		return ledgerdomain.Balance{}, ledgerdomain.ErrAccountNotFound
	}
	return balance, nil
}

func (s *Service) accountExists(ctx context.Context, tx *gorm.DB, userID int64) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Raw(`SELECT COUNT(1) FROM balances WHERE user_id = ?`, userID).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) normalize(posting ledgerdomain.Posting) (ledgerdomain.Posting, error) {
	if posting.UserID == 0 {
		return posting, ledgerdomain.ErrInvalidUser
	}
	if posting.Amount <= 0 {
		return posting, ledgerdomain.ErrInvalidAmount
	}
	direction, err := normalizeDirection(posting.Direction)
	if err != nil {
		return posting, err
	}
	posting.Direction = direction

	sourceType := ledgerdomain.LedgerSourceType(strings.TrimSpace(string(posting.SourceType)))
	switch sourceType {
	case ledgerdomain.SourceTypeVipPurchase,
		ledgerdomain.SourceTypeAdminCredit,
		ledgerdomain.SourceTypeAdminDebit,
		ledgerdomain.SourceTypeReferralBonus:
	default:
		return posting, ledgerdomain.ErrInvalidSourceType
	}
	posting.SourceType = sourceType

	posting.SourceID = strings.TrimSpace(posting.SourceID)
	if posting.SourceID == "" {
		return posting, ledgerdomain.ErrInvalidSourceID
	}
	if posting.OccurredAt.IsZero() {
		posting.OccurredAt = s.clock.Now()
	}
	posting.OccurredAt = posting.OccurredAt.UTC()
	return posting, nil
}

func normalizeDirection(direction ledgerdomain.LedgerEntryDirection) (ledgerdomain.LedgerEntryDirection, error) {
	normalized := strings.ToLower(strings.TrimSpace(string(direction)))
	switch normalized {
	case string(ledgerdomain.LedgerEntryDirectionDebit):
		return ledgerdomain.LedgerEntryDirectionDebit, nil
	case string(ledgerdomain.LedgerEntryDirectionCredit):
		return ledgerdomain.LedgerEntryDirectionCredit, nil
	default:
		return "", ledgerdomain.ErrInvalidLineDirection
	}
}

// IsInsufficientFunds reports whether err came from a rejected debit.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ledgerdomain.ErrInsufficientFunds)
}
