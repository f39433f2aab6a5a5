package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepository_Credit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepository(mock)
	ctx := context.Background()

	accountID := int64(1)
	channel := domain.ChannelBalance

	t.Run("Success - credit", func(t *testing.T) {
		delta := decimal.RequireFromString("100.00")

		mock.ExpectBegin()

		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WithArgs(lockKey(accountID, channel)).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))

		balanceRows := pgxmock.NewRows([]string{"balance"}).AddRow(decimal.RequireFromString("50.00"))
		mock.ExpectQuery(`INSERT INTO account_balances`).
			WithArgs(accountID, channel).
			WillReturnRows(balanceRows)

		mock.ExpectExec(`UPDATE account_balances SET balance`).
			WithArgs(decimal.RequireFromString("150.00"), accountID, channel).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		mock.ExpectExec(`INSERT INTO ledger_entries`).
			WithArgs(accountID, channel, delta, decimal.RequireFromString("150.00"), "order settlement", (*string)(nil), (*string)(nil)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		mock.ExpectCommit()

		balance, err := repo.Credit(ctx, accountID, channel, delta, "order settlement", nil, nil)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("150.00")))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Insufficient balance on debit", func(t *testing.T) {
		delta := decimal.RequireFromString("-200.00")

		mock.ExpectBegin()

		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WithArgs(lockKey(accountID, channel)).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))

		balanceRows := pgxmock.NewRows([]string{"balance"}).AddRow(decimal.RequireFromString("50.00"))
		mock.ExpectQuery(`INSERT INTO account_balances`).
			WithArgs(accountID, channel).
			WillReturnRows(balanceRows)

		mock.ExpectRollback()

		_, err := repo.Credit(ctx, accountID, channel, delta, "withdrawal", nil, nil)
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate dedup key", func(t *testing.T) {
		delta := decimal.RequireFromString("10.00")
		orderNumber := "202503141509261001234567"
		dedupKey := "settle:" + orderNumber + ":merchant"

		mock.ExpectBegin()

		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WithArgs(lockKey(accountID, channel)).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))

		balanceRows := pgxmock.NewRows([]string{"balance"}).AddRow(decimal.Zero)
		mock.ExpectQuery(`INSERT INTO account_balances`).
			WithArgs(accountID, channel).
			WillReturnRows(balanceRows)

		mock.ExpectExec(`UPDATE account_balances SET balance`).
			WithArgs(decimal.RequireFromString("10.00"), accountID, channel).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		mock.ExpectExec(`INSERT INTO ledger_entries`).
			WithArgs(accountID, channel, delta, decimal.RequireFromString("10.00"), "order settlement", &orderNumber, &dedupKey).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		mock.ExpectRollback()

		_, err := repo.Credit(ctx, accountID, channel, delta, "order settlement", &orderNumber, &dedupKey)
		assert.ErrorIs(t, err, ErrDuplicateEntry)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Invalid channel", func(t *testing.T) {
		_, err := repo.Credit(ctx, accountID, domain.Channel("bogus"), decimal.NewFromInt(1), "x", nil, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidChannel)
	})

	t.Run("Begin transaction error", func(t *testing.T) {
		mock.ExpectBegin().WillReturnError(errors.New("begin error"))

		_, err := repo.Credit(ctx, accountID, channel, decimal.NewFromInt(1), "x", nil, nil)
		assert.Error(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_Balance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepository(mock)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"balance"}).AddRow(decimal.RequireFromString("42.50"))
		mock.ExpectQuery(`SELECT balance FROM account_balances`).
			WithArgs(int64(1), domain.ChannelTeamPoints).
			WillReturnRows(rows)

		balance, err := repo.Balance(ctx, int64(1), domain.ChannelTeamPoints)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("42.50")))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No movement yet", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"balance"})
		mock.ExpectQuery(`SELECT balance FROM account_balances`).
			WithArgs(int64(999), domain.ChannelBalance).
			WillReturnRows(rows)

		balance, err := repo.Balance(ctx, int64(999), domain.ChannelBalance)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_History(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepository(mock)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		accountID := int64(1)
		rows := pgxmock.NewRows([]string{"id", "account_id", "channel", "delta", "balance_after", "reason", "order_number", "created_at"}).
			AddRow(int64(2), accountID, domain.ChannelBalance, decimal.RequireFromString("-30.00"), decimal.RequireFromString("70.00"), "withdrawal", nil, time.Now()).
			AddRow(int64(1), accountID, domain.ChannelBalance, decimal.RequireFromString("100.00"), decimal.RequireFromString("100.00"), "order settlement", nil, time.Now())

		mock.ExpectQuery(`SELECT id, account_id, channel, delta, balance_after, reason, order_number, created_at`).
			WithArgs(accountID, domain.ChannelBalance, 10, 0).
			WillReturnRows(rows)

		entries, err := repo.History(ctx, accountID, domain.ChannelBalance, 10, 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "withdrawal", entries[0].Reason)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_VerifyChain(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepository(mock)
	ctx := context.Background()

	accountID := int64(1)
	channel := domain.ChannelUnilevelPoints

	t.Run("Consistent chain", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"delta", "balance_after"}).
			AddRow(decimal.RequireFromString("100.00"), decimal.RequireFromString("100.00")).
			AddRow(decimal.RequireFromString("-40.00"), decimal.RequireFromString("60.00")).
			AddRow(decimal.RequireFromString("15.50"), decimal.RequireFromString("75.50"))

		mock.ExpectQuery(`SELECT delta, balance_after FROM ledger_entries`).
			WithArgs(accountID, channel).
			WillReturnRows(rows)

		err := repo.VerifyChain(ctx, accountID, channel)
		assert.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Broken snapshot", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"delta", "balance_after"}).
			AddRow(decimal.RequireFromString("100.00"), decimal.RequireFromString("100.00")).
			AddRow(decimal.RequireFromString("-40.00"), decimal.RequireFromString("70.00"))

		mock.ExpectQuery(`SELECT delta, balance_after FROM ledger_entries`).
			WithArgs(accountID, channel).
			WillReturnRows(rows)

		err := repo.VerifyChain(ctx, accountID, channel)
		assert.ErrorIs(t, err, ErrChainBroken)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Empty chain", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"delta", "balance_after"})

		mock.ExpectQuery(`SELECT delta, balance_after FROM ledger_entries`).
			WithArgs(accountID, channel).
			WillReturnRows(rows)

		err := repo.VerifyChain(ctx, accountID, channel)
		assert.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
