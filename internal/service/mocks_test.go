package service

import (
	"context"
	"time"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// Ручные моки репозиториев для тестов сервисного слоя

type AccountRepositoryMock struct {
	mock.Mock
}

func (m *AccountRepositoryMock) CreateAccount(ctx context.Context, mobile, passwordHash, name, referralCode string) (*domain.Account, error) {
	args := m.Called(ctx, mobile, passwordHash, name, referralCode)
	if acc := args.Get(0); acc != nil {
		return acc.(*domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AccountRepositoryMock) GetAccountByMobile(ctx context.Context, mobile string) (*domain.Account, error) {
	args := m.Called(ctx, mobile)
	if acc := args.Get(0); acc != nil {
		return acc.(*domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AccountRepositoryMock) GetAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if acc := args.Get(0); acc != nil {
		return acc.(*domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AccountRepositoryMock) GetAccountByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	args := m.Called(ctx, code)
	if acc := args.Get(0); acc != nil {
		return acc.(*domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AccountRepositoryMock) SetStarLevel(ctx context.Context, id int64, level int) error {
	return m.Called(ctx, id, level).Error(0)
}

func (m *AccountRepositoryMock) RaiseStarLevel(ctx context.Context, id int64, level int) error {
	return m.Called(ctx, id, level).Error(0)
}

func (m *AccountRepositoryMock) SetUnilevelTier(ctx context.Context, id int64, tier int) error {
	return m.Called(ctx, id, tier).Error(0)
}

func (m *AccountRepositoryMock) SetStatus(ctx context.Context, id int64, status domain.AccountStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *AccountRepositoryMock) SetHonorDirector(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *AccountRepositoryMock) IDsWithMinStar(ctx context.Context, minStar int) ([]int64, error) {
	args := m.Called(ctx, minStar)
	if ids := args.Get(0); ids != nil {
		return ids.([]int64), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AccountRepositoryMock) HonorDirectorIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if ids := args.Get(0); ids != nil {
		return ids.([]int64), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AccountRepositoryMock) StarLevels(ctx context.Context, ids []int64) (map[int64]int, error) {
	args := m.Called(ctx, ids)
	if levels := args.Get(0); levels != nil {
		return levels.(map[int64]int), args.Error(1)
	}
	return nil, args.Error(1)
}

type ReferralRepositoryMock struct {
	mock.Mock
}

func (m *ReferralRepositoryMock) Bind(ctx context.Context, userID, referrerID int64, maxAncestorWalk int) error {
	return m.Called(ctx, userID, referrerID, maxAncestorWalk).Error(0)
}

func (m *ReferralRepositoryMock) Referrer(ctx context.Context, userID int64) (*domain.ReferralEdge, error) {
	args := m.Called(ctx, userID)
	if edge := args.Get(0); edge != nil {
		return edge.(*domain.ReferralEdge), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ReferralRepositoryMock) DirectChildren(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	if children := args.Get(0); children != nil {
		return children.([]int64), args.Error(1)
	}
	return nil, args.Error(1)
}

type LedgerRepositoryMock struct {
	mock.Mock
}

func (m *LedgerRepositoryMock) Credit(ctx context.Context, accountID int64, channel domain.Channel, delta decimal.Decimal, reason string, orderNumber, dedupKey *string) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID, channel, delta, reason, orderNumber, dedupKey)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *LedgerRepositoryMock) Balance(ctx context.Context, accountID int64, channel domain.Channel) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID, channel)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *LedgerRepositoryMock) History(ctx context.Context, accountID int64, channel domain.Channel, limit, offset int) ([]*domain.LedgerEntry, error) {
	args := m.Called(ctx, accountID, channel, limit, offset)
	if entries := args.Get(0); entries != nil {
		return entries.([]*domain.LedgerEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LedgerRepositoryMock) VerifyChain(ctx context.Context, accountID int64, channel domain.Channel) error {
	return m.Called(ctx, accountID, channel).Error(0)
}

type OrderRepositoryMock struct {
	mock.Mock
}

func (m *OrderRepositoryMock) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	args := m.Called(ctx, order)
	if created := args.Get(0); created != nil {
		return created.(*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OrderRepositoryMock) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	args := m.Called(ctx, number)
	if order := args.Get(0); order != nil {
		return order.(*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OrderRepositoryMock) GetOrdersByBuyer(ctx context.Context, buyerID int64) ([]*domain.Order, error) {
	args := m.Called(ctx, buyerID)
	if orders := args.Get(0); orders != nil {
		return orders.([]*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OrderRepositoryMock) MarkPaid(ctx context.Context, number, externalTxnID string, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, number, externalTxnID, paidAt)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepositoryMock) TransitionStatus(ctx context.Context, number string, from, to domain.OrderStatus) (bool, error) {
	args := m.Called(ctx, number, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepositoryMock) ClaimMemberStar(ctx context.Context, number string, star int) (int, error) {
	args := m.Called(ctx, number, star)
	return args.Int(0), args.Error(1)
}

func (m *OrderRepositoryMock) GetUnsettledPaid(ctx context.Context, olderThan time.Duration) ([]*domain.Order, error) {
	args := m.Called(ctx, olderThan)
	if orders := args.Get(0); orders != nil {
		return orders.([]*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

type SplitRepositoryMock struct {
	mock.Mock
}

func (m *SplitRepositoryMock) SaveSplit(ctx context.Context, split *domain.FundSplit) error {
	return m.Called(ctx, split).Error(0)
}

func (m *SplitRepositoryMock) MerchantShare(ctx context.Context, orderNumber string) (decimal.Decimal, error) {
	args := m.Called(ctx, orderNumber)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type PoolRepositoryMock struct {
	mock.Mock
}

func (m *PoolRepositoryMock) AddPoolBalance(ctx context.Context, pool domain.PoolKey, delta decimal.Decimal, remark string, dedupKey *string) error {
	return m.Called(ctx, pool, delta, remark, dedupKey).Error(0)
}

func (m *PoolRepositoryMock) PoolBalance(ctx context.Context, pool domain.PoolKey) (decimal.Decimal, error) {
	args := m.Called(ctx, pool)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type AuditRepositoryMock struct {
	mock.Mock
}

func (m *AuditRepositoryMock) Record(ctx context.Context, rec *domain.AuditRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *AuditRepositoryMock) ByTarget(ctx context.Context, targetID int64, limit, offset int) ([]*domain.AuditRecord, error) {
	args := m.Called(ctx, targetID, limit, offset)
	if records := args.Get(0); records != nil {
		return records.([]*domain.AuditRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

type MerchantNotifierMock struct {
	mock.Mock
}

func (m *MerchantNotifierMock) NotifyPayout(ctx context.Context, orderNumber string, amount decimal.Decimal) error {
	return m.Called(ctx, orderNumber, amount).Error(0)
}
