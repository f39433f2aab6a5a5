package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus представляет статус аккаунта
type AccountStatus int16

const (
	AccountStatusNormal  AccountStatus = 0
	AccountStatusFrozen  AccountStatus = 1
	AccountStatusDeleted AccountStatus = 2 // терминальный статус, возврата нет
)

// MaxStarLevel максимальный звездный уровень
const MaxStarLevel = 6

// MaxUnilevelTier максимальный партнерский уровень
const MaxUnilevelTier = 3

// Channel представляет канал баланса в леджере
type Channel string

const (
	ChannelUnilevelPoints Channel = "unilevel_points"
	ChannelSubsidyPoints  Channel = "subsidy_points"
	ChannelTeamPoints     Channel = "team_points"
	ChannelReferralPoints Channel = "referral_points"
	ChannelBalance        Channel = "balance" // выводимый денежный баланс
)

// Channels перечисляет все каналы леджера
var Channels = []Channel{
	ChannelUnilevelPoints,
	ChannelSubsidyPoints,
	ChannelTeamPoints,
	ChannelReferralPoints,
	ChannelBalance,
}

// Ordinal возвращает стабильный номер канала для advisory lock
func (c Channel) Ordinal() int32 {
	switch c {
	case ChannelUnilevelPoints:
		return 1
	case ChannelSubsidyPoints:
		return 2
	case ChannelTeamPoints:
		return 3
	case ChannelReferralPoints:
		return 4
	case ChannelBalance:
		return 5
	default:
		return 0
	}
}

// Valid проверяет, что канал известен системе
func (c Channel) Valid() bool {
	return c.Ordinal() != 0
}

// OrderStatus представляет статус заказа
type OrderStatus string

const (
	OrderStatusPendingPay    OrderStatus = "pending_pay"
	OrderStatusPaid          OrderStatus = "paid"
	OrderStatusSettled       OrderStatus = "settled"
	OrderStatusRefundApplied OrderStatus = "refund_applied"
	OrderStatusRefunded      OrderStatus = "refunded"
)

// PoolKey представляет ключ фонда распределения средств
type PoolKey string

const (
	PoolPublicWelfare   PoolKey = "public_welfare"
	PoolPlatform        PoolKey = "platform"
	PoolSubsidy         PoolKey = "subsidy_pool"
	PoolHonorDirector   PoolKey = "honor_director"
	PoolCommunity       PoolKey = "community"
	PoolCityCenter      PoolKey = "city_center"
	PoolRegionCompany   PoolKey = "region_company"
	PoolDevelopment     PoolKey = "development"
	PoolPlatformRevenue PoolKey = "platform_revenue_pool" // пул по умолчанию, забирает остаток
)

// Account представляет аккаунт участника
type Account struct {
	ID             int64         `json:"id"`
	Mobile         string        `json:"mobile"`
	PasswordHash   string        `json:"-"` // Не отправляем хеш в JSON
	Name           string        `json:"name,omitempty"`
	ReferralCode   string        `json:"referral_code"`
	StarLevel      int           `json:"star_level"`    // 0-6
	UnilevelTier   int           `json:"unilevel_tier"` // 0-3
	Status         AccountStatus `json:"status"`
	HonorDirector  bool          `json:"honor_director"`
	LevelChangedAt *time.Time    `json:"level_changed_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ReferralEdge представляет ребро user -> referrer.
// У пользователя не более одного исходящего ребра; множество ребер образует лес.
type ReferralEdge struct {
	UserID     int64     `json:"user_id"`
	ReferrerID int64     `json:"referrer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TeamMember представляет участника команды с номером слоя
type TeamMember struct {
	UserID    int64 `json:"user_id"`
	StarLevel int   `json:"star_level"`
	Layer     int   `json:"layer"`
}

// LedgerEntry представляет неизменяемую запись леджера
type LedgerEntry struct {
	ID           int64           `json:"-"`
	AccountID    int64           `json:"-"`
	Channel      Channel         `json:"channel"`
	Delta        decimal.Decimal `json:"delta"`
	BalanceAfter decimal.Decimal `json:"balance_after"` // снимок баланса на момент записи
	Reason       string          `json:"reason"`
	OrderNumber  *string         `json:"order_number,omitempty"`
	DedupKey     *string         `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
}

// OrderItem представляет позицию заказа
type OrderItem struct {
	ProductName     string          `json:"product_name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	IsMemberProduct bool            `json:"is_member_product"`
}

// Order представляет заказ
type Order struct {
	ID            int64           `json:"-"`
	Number        string          `json:"order_number"`
	BuyerID       int64           `json:"-"`
	MerchantID    int64           `json:"-"`
	Total         decimal.Decimal `json:"total"`
	IsMemberOrder bool            `json:"is_member_order"`
	Status        OrderStatus     `json:"status"`
	ExternalTxnID *string         `json:"external_txn_id,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PoolShare представляет долю одного фонда в разбиении заказа
type PoolShare struct {
	Pool   PoolKey         `json:"pool"`
	Amount decimal.Decimal `json:"amount"`
}

// FundSplit представляет разбиение суммы заказа: доля продавца + доли фондов.
// Инвариант: Merchant + сумма всех Pools == сумма заказа, без потерь на округлении.
type FundSplit struct {
	OrderNumber string          `json:"order_number"`
	Merchant    decimal.Decimal `json:"merchant"`
	Pools       []PoolShare     `json:"pools"`
}

// Total возвращает полную сумму разбиения
func (s FundSplit) Total() decimal.Decimal {
	total := s.Merchant
	for _, p := range s.Pools {
		total = total.Add(p.Amount)
	}
	return total
}

// PaymentNotification представляет разобранный платежный коллбэк
type PaymentNotification struct {
	OrderNumber   string `json:"order_number"`
	ReturnCode    string `json:"return_code"` // верхнеуровневый статус доставки
	ResultCode    string `json:"result_code"` // бизнес-статус платежа
	TransactionID string `json:"transaction_id"`
	PaidAt        int64  `json:"paid_at"` // unix время оплаты
	Sign          string `json:"sign"`
}

// NotifySuccess код успешного статуса в платежном коллбэке
const NotifySuccess = "SUCCESS"

// AckStatus представляет ответ платежному провайдеру
type AckStatus string

const (
	AckSuccess AckStatus = "SUCCESS" // провайдер прекращает повторы
	AckFail    AckStatus = "FAIL"    // провайдер повторит уведомление позже
)

// RoleAdmin роль администратора в JWT claims
const RoleAdmin = "admin"

// Principal представляет уже авторизованный субъект операции.
// Ядро не хранит секретов: авторизацию выполняет внешний слой.
type Principal struct {
	AccountID int64  `json:"account_id"`
	Role      string `json:"role"`
}

// CanAdminister сообщает, доступны ли субъекту привилегированные операции
func (p Principal) CanAdminister() bool {
	return p.Role == RoleAdmin
}

// AuditRecord представляет запись аудита привилегированной операции
type AuditRecord struct {
	ID        int64     `json:"id"`
	ActorID   int64     `json:"actor_id"`
	TargetID  int64     `json:"target_id"`
	OpType    string    `json:"op_type"`
	OldValue  int       `json:"old_value"`
	NewValue  int       `json:"new_value"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
