package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AccountRepository определяет методы для работы с аккаунтами
type AccountRepository interface {
	CreateAccount(ctx context.Context, mobile, passwordHash, name, referralCode string) (*Account, error)
	GetAccountByMobile(ctx context.Context, mobile string) (*Account, error)
	GetAccountByID(ctx context.Context, id int64) (*Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*Account, error)
	SetStarLevel(ctx context.Context, id int64, level int) error
	// RaiseStarLevel поднимает уровень до level, только если текущий ниже.
	// Нулевое число затронутых строк не считается ошибкой.
	RaiseStarLevel(ctx context.Context, id int64, level int) error
	SetUnilevelTier(ctx context.Context, id int64, tier int) error
	SetStatus(ctx context.Context, id int64, status AccountStatus) error
	SetHonorDirector(ctx context.Context, id int64) error
	StarLevels(ctx context.Context, ids []int64) (map[int64]int, error)
	// IDsWithMinStar возвращает действующие аккаунты со звездным уровнем не ниже minStar
	IDsWithMinStar(ctx context.Context, minStar int) ([]int64, error)
	// HonorDirectorIDs возвращает действующие аккаунты со званием почетного директора
	HonorDirectorIDs(ctx context.Context) ([]int64, error)
}

// ReferralRepository определяет методы для работы с реферальным графом
type ReferralRepository interface {
	Bind(ctx context.Context, userID, referrerID int64, maxAncestorWalk int) error
	Referrer(ctx context.Context, userID int64) (*ReferralEdge, error)
	DirectChildren(ctx context.Context, userID int64) ([]int64, error)
}

// LedgerRepository определяет методы для работы с леджером
type LedgerRepository interface {
	Credit(ctx context.Context, accountID int64, channel Channel, delta decimal.Decimal, reason string, orderNumber, dedupKey *string) (decimal.Decimal, error)
	Balance(ctx context.Context, accountID int64, channel Channel) (decimal.Decimal, error)
	History(ctx context.Context, accountID int64, channel Channel, limit, offset int) ([]*LedgerEntry, error)
	VerifyChain(ctx context.Context, accountID int64, channel Channel) error
}

// OrderRepository определяет методы для работы с заказами
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *Order) (*Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*Order, error)
	GetOrdersByBuyer(ctx context.Context, buyerID int64) ([]*Order, error)
	// MarkPaid выполняет условный переход pending_pay -> paid.
	// Возвращает false без ошибки, если заказ уже не в pending_pay.
	MarkPaid(ctx context.Context, number, externalTxnID string, paidAt time.Time) (bool, error)
	// TransitionStatus выполняет условный переход from -> to, возвращает false при нуле затронутых строк
	TransitionStatus(ctx context.Context, number string, from, to OrderStatus) (bool, error)
	GetUnsettledPaid(ctx context.Context, olderThan time.Duration) ([]*Order, error)
	// ClaimMemberStar фиксирует звездный уровень покупателя на момент первого
	// расчета заказа и возвращает зафиксированное значение. Повторные вызовы
	// возвращают значение первого, какой бы star ни передали.
	ClaimMemberStar(ctx context.Context, number string, star int) (int, error)
}

// SplitRepository определяет методы для работы с записями разбиения заказа
type SplitRepository interface {
	SaveSplit(ctx context.Context, split *FundSplit) error
	MerchantShare(ctx context.Context, orderNumber string) (decimal.Decimal, error)
}

// PoolRepository определяет методы для работы с фондами платформы
type PoolRepository interface {
	AddPoolBalance(ctx context.Context, pool PoolKey, delta decimal.Decimal, remark string, dedupKey *string) error
	PoolBalance(ctx context.Context, pool PoolKey) (decimal.Decimal, error)
}

// AuditRepository определяет методы для журнала аудита привилегированных операций
type AuditRepository interface {
	Record(ctx context.Context, rec *AuditRecord) error
	ByTarget(ctx context.Context, targetID int64, limit, offset int) ([]*AuditRecord, error)
}

// MerchantNotifier определяет отправку уведомления продавцу о выплате
type MerchantNotifier interface {
	NotifyPayout(ctx context.Context, orderNumber string, amount decimal.Decimal) error
}
