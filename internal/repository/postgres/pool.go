package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// PoolRepository реализует domain.PoolRepository
type PoolRepository struct {
	db DBTX
}

// NewPoolRepository создает новый PoolRepository
func NewPoolRepository(db DBTX) *PoolRepository {
	return &PoolRepository{db: db}
}

// AddPoolBalance изменяет баланс фонда и пишет запись движения.
// Повторный вызов с тем же dedupKey откатывается с ErrDuplicateEntry,
// баланс фонда при этом не меняется.
func (r *PoolRepository) AddPoolBalance(ctx context.Context, pool domain.PoolKey, delta decimal.Decimal, remark string, dedupKey *string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin pool transaction for %q: %w", pool, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback после Commit безопасен

	var balance decimal.Decimal
	err = tx.QueryRow(ctx,
		`INSERT INTO fund_pools (pool_key, balance)
		 VALUES ($1, $2)
		 ON CONFLICT (pool_key) DO UPDATE SET balance = fund_pools.balance + EXCLUDED.balance, updated_at = now()
		 RETURNING balance`,
		pool, delta,
	).Scan(&balance)

	if err != nil {
		return fmt.Errorf("repository: failed to update pool %q balance: %w", pool, err)
	}

	if balance.IsNegative() {
		return ErrPoolNegative
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO pool_flows (pool_key, delta, balance_after, remark, dedup_key) VALUES ($1, $2, $3, $4, $5)`,
		pool, delta, balance, remark, dedupKey,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("repository: failed to insert pool flow for %q: %w", pool, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit pool transaction for %q: %w", pool, err)
	}

	return nil
}

// PoolBalance возвращает текущий баланс фонда
func (r *PoolRepository) PoolBalance(ctx context.Context, pool domain.PoolKey) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := r.db.QueryRow(ctx,
		`SELECT balance FROM fund_pools WHERE pool_key = $1`,
		pool,
	).Scan(&balance)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("repository: failed to get pool %q balance: %w", pool, err)
	}

	return balance, nil
}
