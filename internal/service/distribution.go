package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/repository/postgres"
	"github.com/shopspring/decimal"
)

// DistributionService раздает накопленные фонды участникам на канал
// subsidy_points. Раздача одного периода идемпотентна: списание с фонда
// и начисление каждому получателю защищены dedup-ключами с периодом,
// поэтому повтор после сбоя доначисляет только пропущенных.
type DistributionService struct {
	accountRepo domain.AccountRepository
	poolRepo    domain.PoolRepository
	ledger      *LedgerService
}

// NewDistributionService создает новый DistributionService
func NewDistributionService(accountRepo domain.AccountRepository, poolRepo domain.PoolRepository, ledger *LedgerService) *DistributionService {
	return &DistributionService{
		accountRepo: accountRepo,
		poolRepo:    poolRepo,
		ledger:      ledger,
	}
}

// DistributionResult описывает итог раздачи фонда
type DistributionResult struct {
	Recipients   int             `json:"recipients"`
	PerRecipient decimal.Decimal `json:"per_recipient"`
	Total        decimal.Decimal `json:"total"`
}

// DistributeSubsidy раздает субсидию периода из фонда subsidy_pool
// поровну всем действующим участникам с хотя бы одной звездой
func (s *DistributionService) DistributeSubsidy(ctx context.Context, actor domain.Principal, period string, total decimal.Decimal) (*DistributionResult, error) {
	if !actor.CanAdminister() {
		return nil, ErrForbidden
	}

	recipients, err := s.accountRepo.IDsWithMinStar(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("distribution service: failed to list subsidy recipients: %w", err)
	}

	return s.distribute(ctx, domain.PoolSubsidy, "subsidy", period, total, recipients)
}

// DistributeDividend раздает дивиденд периода из фонда honor_director
// поровну всем действующим почетным директорам
func (s *DistributionService) DistributeDividend(ctx context.Context, actor domain.Principal, period string, total decimal.Decimal) (*DistributionResult, error) {
	if !actor.CanAdminister() {
		return nil, ErrForbidden
	}

	recipients, err := s.accountRepo.HonorDirectorIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("distribution service: failed to list dividend recipients: %w", err)
	}

	return s.distribute(ctx, domain.PoolHonorDirector, "dividend", period, total, recipients)
}

func (s *DistributionService) distribute(ctx context.Context, pool domain.PoolKey, kind, period string, total decimal.Decimal, recipients []int64) (*DistributionResult, error) {
	if period == "" {
		return nil, fmt.Errorf("distribution service: period is required: %w", ErrInvalidInput)
	}
	if !total.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	count := decimal.NewFromInt(int64(len(recipients)))
	perRecipient := total.Div(count).RoundDown(2)
	if perRecipient.IsZero() {
		return nil, ErrInvalidAmount
	}

	// Раздается ровно perRecipient * n; копейки деления остаются в фонде
	distributed := perRecipient.Mul(count)

	poolKey := fmt.Sprintf("%s:%s:pool", kind, period)
	err := s.poolRepo.AddPoolBalance(ctx, pool, distributed.Neg(),
		fmt.Sprintf("%s distribution %s", kind, period), &poolKey)
	if err != nil && !errors.Is(err, postgres.ErrDuplicateEntry) {
		if errors.Is(err, postgres.ErrPoolNegative) {
			return nil, ErrInsufficientPool
		}
		return nil, fmt.Errorf("distribution service: failed to debit pool %s for %s %s: %w", pool, kind, period, err)
	}

	reason := fmt.Sprintf("%s %s", kind, period)
	for _, id := range recipients {
		dedupKey := fmt.Sprintf("%s:%s:%d", kind, period, id)
		_, err := s.ledger.Credit(ctx, id, domain.ChannelSubsidyPoints, perRecipient, reason, nil, &dedupKey)
		if err != nil && !errors.Is(err, domain.ErrDuplicateEntry) {
			return nil, fmt.Errorf("distribution service: failed to credit %s %s to account %d: %w", kind, period, id, err)
		}
	}

	return &DistributionResult{
		Recipients:   len(recipients),
		PerRecipient: perRecipient,
		Total:        distributed,
	}, nil
}
