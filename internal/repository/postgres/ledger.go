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

// LedgerRepository реализует domain.LedgerRepository
type LedgerRepository struct {
	db DBTX
}

// NewLedgerRepository создает новый LedgerRepository
func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// lockKey возвращает ключ advisory lock для пары (аккаунт, канал).
// Канал занимает младшие 3 бита, чтобы записи разных каналов не блокировали друг друга.
func lockKey(accountID int64, channel domain.Channel) int64 {
	return accountID<<3 | int64(channel.Ordinal())
}

// Credit атомарно изменяет баланс канала и пишет неизменяемую запись леджера.
// Отрицательная delta означает списание; итоговый баланс не может уйти в минус.
// Непустой dedupKey защищает от повторного зачисления одного бизнес-события.
func (r *LedgerRepository) Credit(ctx context.Context, accountID int64, channel domain.Channel, delta decimal.Decimal, reason string, orderNumber, dedupKey *string) (decimal.Decimal, error) {
	if !channel.Valid() {
		return decimal.Zero, fmt.Errorf("repository: %w: %q", domain.ErrInvalidChannel, channel)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("repository: failed to begin ledger transaction for account %d: %w", accountID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback после Commit безопасен

	// Сериализуем записи по паре (аккаунт, канал), чтобы не потерять конкурентные инкременты
	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(accountID, channel))
	if err != nil {
		return decimal.Zero, fmt.Errorf("repository: failed to acquire ledger lock for account %d: %w", accountID, err)
	}

	// Читаем материализованный баланс, заводя строку при первом обращении
	var balance decimal.Decimal
	err = tx.QueryRow(ctx,
		`INSERT INTO account_balances (account_id, channel, balance)
		 VALUES ($1, $2, 0)
		 ON CONFLICT (account_id, channel) DO UPDATE SET balance = account_balances.balance
		 RETURNING balance`,
		accountID, channel,
	).Scan(&balance)

	if err != nil {
		return decimal.Zero, fmt.Errorf("repository: failed to read balance for account %d channel %s: %w", accountID, channel, err)
	}

	newBalance := balance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx,
		`UPDATE account_balances SET balance = $1, updated_at = now()
		 WHERE account_id = $2 AND channel = $3`,
		newBalance, accountID, channel,
	)

	if err != nil {
		return decimal.Zero, fmt.Errorf("repository: failed to update balance for account %d channel %s: %w", accountID, channel, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_entries (account_id, channel, delta, balance_after, reason, order_number, dedup_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		accountID, channel, delta, newBalance, reason, orderNumber, dedupKey,
	)

	if err != nil {
		// Повторная доставка того же бизнес-события: уникальный dedup_key
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return decimal.Zero, ErrDuplicateEntry
		}
		return decimal.Zero, fmt.Errorf("repository: failed to insert ledger entry for account %d: %w", accountID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("repository: failed to commit ledger transaction for account %d: %w", accountID, err)
	}

	return newBalance, nil
}

// Balance возвращает последний снимок баланса канала
func (r *LedgerRepository) Balance(ctx context.Context, accountID int64, channel domain.Channel) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := r.db.QueryRow(ctx,
		`SELECT balance FROM account_balances WHERE account_id = $1 AND channel = $2`,
		accountID, channel,
	).Scan(&balance)

	if err != nil {
		// Отсутствие строки означает, что движения по каналу еще не было
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("repository: failed to get balance for account %d channel %s: %w", accountID, channel, err)
	}

	return balance, nil
}

// History возвращает записи леджера, новые первыми
func (r *LedgerRepository) History(ctx context.Context, accountID int64, channel domain.Channel, limit, offset int) ([]*domain.LedgerEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, account_id, channel, delta, balance_after, reason, order_number, created_at
		 FROM ledger_entries
		 WHERE account_id = $1 AND channel = $2
		 ORDER BY id DESC
		 LIMIT $3 OFFSET $4`,
		accountID, channel, limit, offset,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to get ledger history for account %d: %w", accountID, err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		entry := &domain.LedgerEntry{}
		err := rows.Scan(&entry.ID, &entry.AccountID, &entry.Channel, &entry.Delta,
			&entry.BalanceAfter, &entry.Reason, &entry.OrderNumber, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating ledger history: %w", err)
	}

	return entries, nil
}

// VerifyChain проверяет согласованность цепочки снимков: balance_after каждой записи
// равен balance_after предыдущей плюс delta (для первой записи просто delta)
func (r *LedgerRepository) VerifyChain(ctx context.Context, accountID int64, channel domain.Channel) error {
	rows, err := r.db.Query(ctx,
		`SELECT delta, balance_after FROM ledger_entries
		 WHERE account_id = $1 AND channel = $2
		 ORDER BY id ASC`,
		accountID, channel,
	)

	if err != nil {
		return fmt.Errorf("repository: failed to read ledger chain for account %d: %w", accountID, err)
	}
	defer rows.Close()

	prev := decimal.Zero
	index := 0
	for rows.Next() {
		var delta, after decimal.Decimal
		if err := rows.Scan(&delta, &after); err != nil {
			return fmt.Errorf("repository: failed to scan ledger chain entry: %w", err)
		}

		if !prev.Add(delta).Equal(after) {
			return fmt.Errorf("repository: entry %d for account %d channel %s: %w", index, accountID, channel, ErrChainBroken)
		}

		prev = after
		index++
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating ledger chain: %w", err)
	}

	return nil
}
