package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/repository/postgres"
	"github.com/shopspring/decimal"
)

// SettlementService разбивает суммы заказов и проводит расчет.
// Все денежные эффекты расчета идемпотентны через dedup-ключи,
// поэтому Settle можно безопасно повторять до успеха.
type SettlementService struct {
	orderRepo    domain.OrderRepository
	splitRepo    domain.SplitRepository
	poolRepo     domain.PoolRepository
	accountRepo  domain.AccountRepository
	referralRepo domain.ReferralRepository
	ledger       *LedgerService

	merchantRatio      decimal.Decimal
	poolRatios         map[domain.PoolKey]decimal.Decimal
	defaultPool        domain.PoolKey
	memberProductPrice decimal.Decimal
	referralRewardRate decimal.Decimal
}

// NewSettlementService создает новый SettlementService
func NewSettlementService(
	orderRepo domain.OrderRepository,
	splitRepo domain.SplitRepository,
	poolRepo domain.PoolRepository,
	accountRepo domain.AccountRepository,
	referralRepo domain.ReferralRepository,
	ledger *LedgerService,
	merchantRatio decimal.Decimal,
	poolRatios map[domain.PoolKey]decimal.Decimal,
	defaultPool domain.PoolKey,
	memberProductPrice decimal.Decimal,
	referralRewardRate decimal.Decimal,
) *SettlementService {
	return &SettlementService{
		orderRepo:          orderRepo,
		splitRepo:          splitRepo,
		poolRepo:           poolRepo,
		accountRepo:        accountRepo,
		referralRepo:       referralRepo,
		ledger:             ledger,
		merchantRatio:      merchantRatio,
		poolRatios:         poolRatios,
		defaultPool:        defaultPool,
		memberProductPrice: memberProductPrice,
		referralRewardRate: referralRewardRate,
	}
}

// SplitOrder разбивает сумму заказа на долю продавца и доли фондов.
// Именованные фонды считаются от пуловой части; фонд по умолчанию получает
// нераспределенный остаток вместе с копейками округления, поэтому
// доля продавца и все доли фондов в сумме дают ровно total.
func (s *SettlementService) SplitOrder(orderNumber string, total decimal.Decimal) domain.FundSplit {
	merchant := total.Mul(s.merchantRatio).Round(2)
	poolShare := total.Sub(merchant)

	// Детерминированный порядок фондов
	keys := make([]domain.PoolKey, 0, len(s.poolRatios))
	for pool := range s.poolRatios {
		keys = append(keys, pool)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	split := domain.FundSplit{
		OrderNumber: orderNumber,
		Merchant:    merchant,
		Pools:       make([]domain.PoolShare, 0, len(keys)+1),
	}

	allocated := decimal.Zero
	for _, pool := range keys {
		amount := poolShare.Mul(s.poolRatios[pool]).Round(2)
		allocated = allocated.Add(amount)
		split.Pools = append(split.Pools, domain.PoolShare{Pool: pool, Amount: amount})
	}

	split.Pools = append(split.Pools, domain.PoolShare{
		Pool:   s.defaultPool,
		Amount: poolShare.Sub(allocated),
	})

	return split
}

// Settle проводит расчет оплаченного заказа ровно один раз.
// Заказ, уже прошедший расчет (settled и дальше по конвейеру), дает успешный no-op;
// неоплаченный заказ дает конфликт состояния. Денежные эффекты выполняются до перевода
// статуса: при падении на полпути заказ остается paid, и воркер повторит расчет,
// а dedup-ключи не дадут провести начисления дважды.
func (s *SettlementService) Settle(ctx context.Context, orderNumber string) error {
	order, err := s.orderRepo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, postgres.ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("settlement service: failed to get order %s: %w", orderNumber, err)
	}

	switch order.Status {
	case domain.OrderStatusPaid:
		// продолжаем расчет
	case domain.OrderStatusSettled, domain.OrderStatusRefundApplied, domain.OrderStatusRefunded:
		return nil
	default:
		return ErrOrderStateConflict
	}

	split := s.SplitOrder(orderNumber, order.Total)

	if err := s.splitRepo.SaveSplit(ctx, &split); err != nil {
		return fmt.Errorf("settlement service: failed to save split for order %s: %w", orderNumber, err)
	}

	merchantKey := "settle:" + orderNumber + ":merchant"
	_, err = s.ledger.Credit(ctx, order.MerchantID, domain.ChannelBalance, split.Merchant,
		"order settlement", &orderNumber, &merchantKey)
	if err != nil && !errors.Is(err, domain.ErrDuplicateEntry) {
		return fmt.Errorf("settlement service: failed to credit merchant for order %s: %w", orderNumber, err)
	}

	for _, share := range split.Pools {
		if share.Amount.IsZero() {
			continue
		}
		poolKey := fmt.Sprintf("settle:%s:pool:%s", orderNumber, share.Pool)
		err = s.poolRepo.AddPoolBalance(ctx, share.Pool, share.Amount,
			fmt.Sprintf("order %s allocation", orderNumber), &poolKey)
		if err != nil && !errors.Is(err, postgres.ErrDuplicateEntry) {
			return fmt.Errorf("settlement service: failed to credit pool %s for order %s: %w", share.Pool, orderNumber, err)
		}
	}

	if order.IsMemberOrder {
		if err := s.applyMemberBenefits(ctx, order); err != nil {
			return err
		}
	}

	ok, err := s.orderRepo.TransitionStatus(ctx, orderNumber, domain.OrderStatusPaid, domain.OrderStatusSettled)
	if err != nil {
		return fmt.Errorf("settlement service: failed to mark order %s settled: %w", orderNumber, err)
	}
	if !ok {
		// Конкурентный расчет успел раньше: проверяем, что заказ ушел дальше по конвейеру
		current, err := s.orderRepo.GetOrderByNumber(ctx, orderNumber)
		if err != nil {
			return fmt.Errorf("settlement service: failed to recheck order %s: %w", orderNumber, err)
		}
		if current.Status == domain.OrderStatusPaid || current.Status == domain.OrderStatusPendingPay {
			return ErrOrderStateConflict
		}
	}

	return nil
}

// applyMemberBenefits начисляет покупателю членского заказа звезду, баллы
// и награды пригласившим. Уровень покупателя до покупки фиксируется на самом
// заказе первым проходом расчета, поэтому повторы, пришедшие после других
// заказов того же покупателя, считают награды от того же уровня.
func (s *SettlementService) applyMemberBenefits(ctx context.Context, order *domain.Order) error {
	buyer, err := s.accountRepo.GetAccountByID(ctx, order.BuyerID)
	if err != nil {
		return fmt.Errorf("settlement service: failed to get buyer %d for order %s: %w", order.BuyerID, order.Number, err)
	}

	oldStar, err := s.orderRepo.ClaimMemberStar(ctx, order.Number, buyer.StarLevel)
	if err != nil {
		return fmt.Errorf("settlement service: failed to claim member star for order %s: %w", order.Number, err)
	}

	pointsKey := "settle:" + order.Number + ":points"
	_, err = s.ledger.Credit(ctx, buyer.ID, domain.ChannelUnilevelPoints, order.Total,
		"member product purchase", &order.Number, &pointsKey)
	if err != nil && !errors.Is(err, domain.ErrDuplicateEntry) {
		return fmt.Errorf("settlement service: failed to credit points for buyer %d: %w", buyer.ID, err)
	}

	newStar := oldStar
	if newStar < domain.MaxStarLevel {
		newStar++
		if err := s.accountRepo.RaiseStarLevel(ctx, buyer.ID, newStar); err != nil {
			return fmt.Errorf("settlement service: failed to raise star for buyer %d: %w", buyer.ID, err)
		}
	}

	reward := s.memberProductPrice.Mul(s.referralRewardRate).Round(2)

	// Реферальная награда пригласившему за первую звезду
	if oldStar == 0 {
		edge, err := s.referralRepo.Referrer(ctx, buyer.ID)
		if err != nil {
			return fmt.Errorf("settlement service: failed to get referrer of buyer %d: %w", buyer.ID, err)
		}
		if edge != nil {
			referralKey := "settle:" + order.Number + ":referral"
			_, err = s.ledger.Credit(ctx, edge.ReferrerID, domain.ChannelReferralPoints, reward,
				"referral reward", &order.Number, &referralKey)
			if err != nil && !errors.Is(err, domain.ErrDuplicateEntry) {
				return fmt.Errorf("settlement service: failed to credit referral reward for order %s: %w", order.Number, err)
			}
		}
	}

	// Командная награда предку на слое нового уровня; первая звезда ее не создает
	if oldStar == 0 && newStar == 1 {
		return nil
	}

	targetLayer := newStar
	ancestorID, found, err := s.ancestorAtLayer(ctx, buyer.ID, targetLayer)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	stars, err := s.accountRepo.StarLevels(ctx, []int64{ancestorID})
	if err != nil {
		return fmt.Errorf("settlement service: failed to get star level of ancestor %d: %w", ancestorID, err)
	}

	if stars[ancestorID] >= targetLayer {
		teamKey := "settle:" + order.Number + ":team"
		_, err = s.ledger.Credit(ctx, ancestorID, domain.ChannelTeamPoints, reward,
			fmt.Sprintf("team reward layer %d", targetLayer), &order.Number, &teamKey)
		if err != nil && !errors.Is(err, domain.ErrDuplicateEntry) {
			return fmt.Errorf("settlement service: failed to credit team reward for order %s: %w", order.Number, err)
		}
	}

	return nil
}

// ancestorAtLayer поднимается на layer шагов вверх по цепочке предков.
// Если цепочка короче, возвращает ее вершину.
func (s *SettlementService) ancestorAtLayer(ctx context.Context, userID int64, layer int) (int64, bool, error) {
	current := userID
	found := false
	for step := 0; step < layer; step++ {
		edge, err := s.referralRepo.Referrer(ctx, current)
		if err != nil {
			return 0, false, fmt.Errorf("settlement service: failed to walk up from %d: %w", current, err)
		}
		if edge == nil {
			break
		}
		current = edge.ReferrerID
		found = true
	}

	return current, found, nil
}

// ApplyRefund переводит заказ из settled в refund_applied
func (s *SettlementService) ApplyRefund(ctx context.Context, orderNumber string) error {
	ok, err := s.orderRepo.TransitionStatus(ctx, orderNumber, domain.OrderStatusSettled, domain.OrderStatusRefundApplied)
	if err != nil {
		return fmt.Errorf("settlement service: failed to apply refund for order %s: %w", orderNumber, err)
	}
	if ok {
		return nil
	}

	order, err := s.orderRepo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, postgres.ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("settlement service: failed to get order %s: %w", orderNumber, err)
	}

	// Заявка уже подана или возврат завершен: идемпотентный успех
	if order.Status == domain.OrderStatusRefundApplied || order.Status == domain.OrderStatusRefunded {
		return nil
	}

	return ErrOrderStateConflict
}

// ReverseOnRefund завершает возврат: списывает с продавца ранее начисленную
// долю и переводит заказ в refunded. Доли фондов не возвращаются.
// При неудаче списания заказ остается в refund_applied и операцию можно повторить.
func (s *SettlementService) ReverseOnRefund(ctx context.Context, orderNumber string) error {
	order, err := s.orderRepo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, postgres.ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("settlement service: failed to get order %s: %w", orderNumber, err)
	}

	switch order.Status {
	case domain.OrderStatusRefundApplied:
		// продолжаем возврат
	case domain.OrderStatusRefunded:
		return nil
	default:
		return ErrOrderStateConflict
	}

	merchantShare, err := s.splitRepo.MerchantShare(ctx, orderNumber)
	if err != nil {
		return fmt.Errorf("settlement service: failed to get merchant share for order %s: %w", orderNumber, err)
	}

	if merchantShare.IsPositive() {
		refundKey := "refund:" + orderNumber + ":merchant"
		_, err = s.ledger.Debit(ctx, order.MerchantID, domain.ChannelBalance, merchantShare,
			"order refund", &orderNumber, &refundKey)
		if err != nil && !errors.Is(err, domain.ErrDuplicateEntry) {
			return fmt.Errorf("settlement service: failed to debit merchant for order %s: %w", orderNumber, err)
		}
	}

	ok, err := s.orderRepo.TransitionStatus(ctx, orderNumber, domain.OrderStatusRefundApplied, domain.OrderStatusRefunded)
	if err != nil {
		return fmt.Errorf("settlement service: failed to mark order %s refunded: %w", orderNumber, err)
	}
	if !ok {
		current, err := s.orderRepo.GetOrderByNumber(ctx, orderNumber)
		if err != nil {
			return fmt.Errorf("settlement service: failed to recheck order %s: %w", orderNumber, err)
		}
		if current.Status != domain.OrderStatusRefunded {
			return ErrOrderStateConflict
		}
	}

	return nil
}
