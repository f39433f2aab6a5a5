package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/repository/postgres"
	"github.com/shopspring/decimal"
)

// LedgerService предоставляет операции с многоканальным леджером
type LedgerService struct {
	ledgerRepo domain.LedgerRepository
}

// NewLedgerService создает новый LedgerService
func NewLedgerService(ledgerRepo domain.LedgerRepository) *LedgerService {
	return &LedgerService{ledgerRepo: ledgerRepo}
}

// Credit начисляет сумму на канал аккаунта.
// Повторный вызов с тем же dedupKey возвращает ErrDuplicateEntry и ничего не меняет.
func (s *LedgerService) Credit(ctx context.Context, accountID int64, channel domain.Channel, amount decimal.Decimal, reason string, orderNumber, dedupKey *string) (decimal.Decimal, error) {
	if !channel.Valid() {
		return decimal.Zero, ErrInvalidChannel
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	balance, err := s.ledgerRepo.Credit(ctx, accountID, channel, amount, reason, orderNumber, dedupKey)
	if err != nil {
		// Не оборачиваем sentinel errors
		if errors.Is(err, postgres.ErrDuplicateEntry) {
			return decimal.Zero, domain.ErrDuplicateEntry
		}
		return decimal.Zero, fmt.Errorf("ledger service: failed to credit account %d channel %s: %w", accountID, channel, err)
	}

	return balance, nil
}

// Debit списывает сумму с канала аккаунта.
// Списание проводится той же записью леджера с отрицательной дельтой.
func (s *LedgerService) Debit(ctx context.Context, accountID int64, channel domain.Channel, amount decimal.Decimal, reason string, orderNumber, dedupKey *string) (decimal.Decimal, error) {
	if !channel.Valid() {
		return decimal.Zero, ErrInvalidChannel
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	balance, err := s.ledgerRepo.Credit(ctx, accountID, channel, amount.Neg(), reason, orderNumber, dedupKey)
	if err != nil {
		if errors.Is(err, postgres.ErrInsufficientBalance) {
			return decimal.Zero, ErrInsufficientBalance
		}
		if errors.Is(err, postgres.ErrDuplicateEntry) {
			return decimal.Zero, domain.ErrDuplicateEntry
		}
		return decimal.Zero, fmt.Errorf("ledger service: failed to debit account %d channel %s: %w", accountID, channel, err)
	}

	return balance, nil
}

// Balance возвращает текущий баланс канала
func (s *LedgerService) Balance(ctx context.Context, accountID int64, channel domain.Channel) (decimal.Decimal, error) {
	if !channel.Valid() {
		return decimal.Zero, ErrInvalidChannel
	}

	balance, err := s.ledgerRepo.Balance(ctx, accountID, channel)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger service: failed to get balance for account %d channel %s: %w", accountID, channel, err)
	}

	return balance, nil
}

// Balances возвращает балансы всех каналов аккаунта
func (s *LedgerService) Balances(ctx context.Context, accountID int64) (map[domain.Channel]decimal.Decimal, error) {
	balances := make(map[domain.Channel]decimal.Decimal, len(domain.Channels))
	for _, channel := range domain.Channels {
		balance, err := s.ledgerRepo.Balance(ctx, accountID, channel)
		if err != nil {
			return nil, fmt.Errorf("ledger service: failed to get balance for account %d channel %s: %w", accountID, channel, err)
		}
		balances[channel] = balance
	}

	return balances, nil
}

// History возвращает записи канала от новых к старым
func (s *LedgerService) History(ctx context.Context, accountID int64, channel domain.Channel, limit, offset int) ([]*domain.LedgerEntry, error) {
	if !channel.Valid() {
		return nil, ErrInvalidChannel
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.ledgerRepo.History(ctx, accountID, channel, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ledger service: failed to get history for account %d channel %s: %w", accountID, channel, err)
	}

	return entries, nil
}

// VerifyChain сверяет цепочку снимков баланса канала с суммой дельт
func (s *LedgerService) VerifyChain(ctx context.Context, accountID int64, channel domain.Channel) error {
	if !channel.Valid() {
		return ErrInvalidChannel
	}

	if err := s.ledgerRepo.VerifyChain(ctx, accountID, channel); err != nil {
		if errors.Is(err, postgres.ErrChainBroken) {
			return err
		}
		return fmt.Errorf("ledger service: failed to verify chain for account %d channel %s: %w", accountID, channel, err)
	}

	return nil
}
