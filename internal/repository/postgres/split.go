package postgres

import (
	"context"
	"fmt"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/shopspring/decimal"
)

// SplitRepository реализует domain.SplitRepository
type SplitRepository struct {
	db DBTX
}

// NewSplitRepository создает новый SplitRepository
func NewSplitRepository(db DBTX) *SplitRepository {
	return &SplitRepository{db: db}
}

// SaveSplit сохраняет записи разбиения заказа: доля продавца + доли фондов.
// Повторное сохранение замещает прежние записи, поэтому повтор расчета
// не раздувает сумму долей по заказу.
func (r *SplitRepository) SaveSplit(ctx context.Context, split *domain.FundSplit) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin split transaction for order %q: %w", split.OrderNumber, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback после Commit безопасен

	_, err = tx.Exec(ctx,
		`DELETE FROM fund_splits WHERE order_number = $1`,
		split.OrderNumber,
	)

	if err != nil {
		return fmt.Errorf("repository: failed to clear split for order %q: %w", split.OrderNumber, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO fund_splits (order_number, item_type, amount) VALUES ($1, 'merchant', $2)`,
		split.OrderNumber, split.Merchant,
	)

	if err != nil {
		return fmt.Errorf("repository: failed to save merchant split for order %q: %w", split.OrderNumber, err)
	}

	for _, pool := range split.Pools {
		_, err = tx.Exec(ctx,
			`INSERT INTO fund_splits (order_number, item_type, amount, pool_key) VALUES ($1, 'pool', $2, $3)`,
			split.OrderNumber, pool.Amount, pool.Pool,
		)

		if err != nil {
			return fmt.Errorf("repository: failed to save pool split %q for order %q: %w", pool.Pool, split.OrderNumber, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit split for order %q: %w", split.OrderNumber, err)
	}

	return nil
}

// MerchantShare возвращает сумму долей продавца по заказу
func (r *SplitRepository) MerchantShare(ctx context.Context, orderNumber string) (decimal.Decimal, error) {
	var share decimal.Decimal

	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM fund_splits
		 WHERE order_number = $1 AND item_type = 'merchant'`,
		orderNumber,
	).Scan(&share)

	if err != nil {
		return decimal.Zero, fmt.Errorf("repository: failed to get merchant share for order %q: %w", orderNumber, err)
	}

	return share, nil
}
