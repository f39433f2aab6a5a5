package service

import (
	"context"
	"testing"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/repository/postgres"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_Credit(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := &LedgerRepositoryMock{}
		svc := NewLedgerService(repo)

		repo.On("Credit", mock.Anything, int64(1), domain.ChannelBalance, decEq("100.00"),
			"order settlement", mock.Anything, mock.Anything).
			Return(decimal.RequireFromString("150.00"), nil).Once()

		balance, err := svc.Credit(ctx, 1, domain.ChannelBalance, decimal.RequireFromString("100.00"),
			"order settlement", nil, nil)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("150.00")))
	})

	t.Run("Invalid channel", func(t *testing.T) {
		svc := NewLedgerService(&LedgerRepositoryMock{})

		_, err := svc.Credit(ctx, 1, domain.Channel("bogus"), decimal.NewFromInt(1), "x", nil, nil)
		assert.ErrorIs(t, err, ErrInvalidChannel)
	})

	t.Run("Non-positive amount", func(t *testing.T) {
		svc := NewLedgerService(&LedgerRepositoryMock{})

		_, err := svc.Credit(ctx, 1, domain.ChannelBalance, decimal.Zero, "x", nil, nil)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = svc.Credit(ctx, 1, domain.ChannelBalance, decimal.NewFromInt(-5), "x", nil, nil)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("Duplicate dedup key", func(t *testing.T) {
		repo := &LedgerRepositoryMock{}
		svc := NewLedgerService(repo)

		repo.On("Credit", mock.Anything, int64(1), domain.ChannelBalance, mock.Anything,
			mock.Anything, mock.Anything, mock.Anything).
			Return(decimal.Zero, postgres.ErrDuplicateEntry).Once()

		_, err := svc.Credit(ctx, 1, domain.ChannelBalance, decimal.NewFromInt(10), "x", nil, nil)
		assert.ErrorIs(t, err, domain.ErrDuplicateEntry)
	})
}

func TestLedgerService_Debit(t *testing.T) {
	ctx := context.Background()

	t.Run("Debit goes through as a negative delta", func(t *testing.T) {
		repo := &LedgerRepositoryMock{}
		svc := NewLedgerService(repo)

		repo.On("Credit", mock.Anything, int64(1), domain.ChannelBalance, decEq("-30.00"),
			"withdrawal", mock.Anything, mock.Anything).
			Return(decimal.RequireFromString("70.00"), nil).Once()

		balance, err := svc.Debit(ctx, 1, domain.ChannelBalance, decimal.RequireFromString("30.00"),
			"withdrawal", nil, nil)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("70.00")))

		repo.AssertExpectations(t)
	})

	t.Run("Insufficient balance", func(t *testing.T) {
		repo := &LedgerRepositoryMock{}
		svc := NewLedgerService(repo)

		repo.On("Credit", mock.Anything, int64(1), domain.ChannelBalance, mock.Anything,
			mock.Anything, mock.Anything, mock.Anything).
			Return(decimal.Zero, postgres.ErrInsufficientBalance).Once()

		_, err := svc.Debit(ctx, 1, domain.ChannelBalance, decimal.NewFromInt(500), "withdrawal", nil, nil)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	})
}

func TestLedgerService_Balances(t *testing.T) {
	ctx := context.Background()

	t.Run("All channels are reported", func(t *testing.T) {
		repo := &LedgerRepositoryMock{}
		svc := NewLedgerService(repo)

		for _, channel := range domain.Channels {
			repo.On("Balance", mock.Anything, int64(1), channel).
				Return(decimal.NewFromInt(int64(channel.Ordinal())), nil).Once()
		}

		balances, err := svc.Balances(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, balances, len(domain.Channels))
	})
}

func TestLedgerService_History(t *testing.T) {
	ctx := context.Background()

	t.Run("Limit is clamped", func(t *testing.T) {
		repo := &LedgerRepositoryMock{}
		svc := NewLedgerService(repo)

		repo.On("History", mock.Anything, int64(1), domain.ChannelBalance, 50, 0).
			Return([]*domain.LedgerEntry{}, nil).Once()

		_, err := svc.History(ctx, 1, domain.ChannelBalance, 1000, -5)
		require.NoError(t, err)

		repo.AssertExpectations(t)
	})
}

func TestLedgerService_VerifyChain(t *testing.T) {
	ctx := context.Background()

	t.Run("Broken chain passes through", func(t *testing.T) {
		repo := &LedgerRepositoryMock{}
		svc := NewLedgerService(repo)

		repo.On("VerifyChain", mock.Anything, int64(1), domain.ChannelBalance).
			Return(postgres.ErrChainBroken).Once()

		err := svc.VerifyChain(ctx, 1, domain.ChannelBalance)
		assert.ErrorIs(t, err, postgres.ErrChainBroken)
	})
}
