package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avc/membership-platform/internal/domain"
	"go.uber.org/zap"
)

// PaymentService обрабатывает платежные коллбэки.
// Контракт с провайдером: положительный ответ останавливает повторы,
// поэтому после зафиксированного перехода в paid ответ не может стать
// отрицательным из-за сбоев последующих шагов.
type PaymentService struct {
	orderRepo  domain.OrderRepository
	settlement *SettlementService
	notifier   domain.MerchantNotifier
	signKey    string
	logger     *zap.Logger
}

// NewPaymentService создает новый PaymentService
func NewPaymentService(
	orderRepo domain.OrderRepository,
	settlement *SettlementService,
	notifier domain.MerchantNotifier,
	signKey string,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		orderRepo:  orderRepo,
		settlement: settlement,
		notifier:   notifier,
		signKey:    signKey,
		logger:     logger,
	}
}

// HandleNotify разбирает и проводит платежное уведомление.
// Любая ошибка разбора или проверки подписи дает отрицательный ответ,
// повторное уведомление об уже оплаченном заказе получает положительный без
// повторного расчета. Паник и ошибок наружу не выпускает.
func (s *PaymentService) HandleNotify(ctx context.Context, payload []byte) domain.AckStatus {
	var notification domain.PaymentNotification
	if err := json.Unmarshal(payload, &notification); err != nil {
		s.logger.Warn("payment notify: malformed payload", zap.Error(err))
		return domain.AckFail
	}

	if notification.ReturnCode != domain.NotifySuccess || notification.ResultCode != domain.NotifySuccess {
		s.logger.Warn("payment notify: non-success status",
			zap.String("order", notification.OrderNumber),
			zap.String("return_code", notification.ReturnCode),
			zap.String("result_code", notification.ResultCode),
		)
		return domain.AckFail
	}

	if !s.verifySign(&notification) {
		s.logger.Warn("payment notify: signature mismatch", zap.String("order", notification.OrderNumber))
		return domain.AckFail
	}

	if notification.OrderNumber == "" || notification.TransactionID == "" {
		return domain.AckFail
	}

	paidAt := time.Unix(notification.PaidAt, 0)
	transitioned, err := s.orderRepo.MarkPaid(ctx, notification.OrderNumber, notification.TransactionID, paidAt)
	if err != nil {
		s.logger.Error("payment notify: failed to mark order paid",
			zap.String("order", notification.OrderNumber),
			zap.Error(err),
		)
		return domain.AckFail
	}

	if !transitioned {
		// Условный переход служит единственным барьером идемпотентности:
		// ноль строк на уже оплаченном заказе означает повтор уведомления
		order, err := s.orderRepo.GetOrderByNumber(ctx, notification.OrderNumber)
		if err != nil {
			s.logger.Warn("payment notify: order lookup failed after zero-row update",
				zap.String("order", notification.OrderNumber),
				zap.Error(err),
			)
			return domain.AckFail
		}

		switch order.Status {
		case domain.OrderStatusPaid, domain.OrderStatusSettled,
			domain.OrderStatusRefundApplied, domain.OrderStatusRefunded:
			return domain.AckSuccess
		default:
			return domain.AckFail
		}
	}

	// Расчет и уведомление продавца не влияют на ответ:
	// недоведенный расчет доберет воркер по оплаченным заказам
	if err := s.settlement.Settle(ctx, notification.OrderNumber); err != nil {
		s.logger.Error("payment notify: settlement failed, worker will retry",
			zap.String("order", notification.OrderNumber),
			zap.Error(err),
		)
		return domain.AckSuccess
	}

	s.notifyMerchant(ctx, notification.OrderNumber)

	return domain.AckSuccess
}

// notifyMerchant отправляет продавцу уведомление о выплате его доли
func (s *PaymentService) notifyMerchant(ctx context.Context, orderNumber string) {
	order, err := s.orderRepo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		s.logger.Warn("payment notify: failed to load order for merchant notice",
			zap.String("order", orderNumber),
			zap.Error(err),
		)
		return
	}

	merchantShare := s.settlement.SplitOrder(orderNumber, order.Total).Merchant
	if err := s.notifier.NotifyPayout(ctx, orderNumber, merchantShare); err != nil {
		s.logger.Warn("payment notify: merchant notice failed",
			zap.String("order", orderNumber),
			zap.Error(err),
		)
	}
}

// verifySign сверяет подпись уведомления в константное время
func (s *PaymentService) verifySign(n *domain.PaymentNotification) bool {
	if n.Sign == "" {
		return false
	}

	expected := SignNotification(n, s.signKey)
	return hmac.Equal([]byte(expected), []byte(n.Sign))
}

// SignNotification считает HMAC-SHA256 подпись уведомления.
// Поля конкатенируются в каноническом алфавитном порядке, ключ подписи
// в строку не входит.
func SignNotification(n *domain.PaymentNotification, key string) string {
	canonical := fmt.Sprintf("order_number=%s&paid_at=%d&result_code=%s&return_code=%s&transaction_id=%s",
		n.OrderNumber, n.PaidAt, n.ResultCode, n.ReturnCode, n.TransactionID)

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}
