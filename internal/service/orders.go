package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/repository/postgres"
	"github.com/avc/membership-platform/internal/utils/ordernum"
	"github.com/shopspring/decimal"
)

// OrderService создает заказы и отдает их покупателю
type OrderService struct {
	orderRepo domain.OrderRepository
}

// NewOrderService создает новый OrderService
func NewOrderService(orderRepo domain.OrderRepository) *OrderService {
	return &OrderService{orderRepo: orderRepo}
}

// CreateOrder создает заказ в статусе pending_pay.
// Сумма считается из позиций в точной десятичной арифметике.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID, merchantID int64, items []domain.OrderItem) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("order service: order has no items: %w", ErrInvalidInput)
	}

	total := decimal.Zero
	isMemberOrder := false
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("order service: item %q has non-positive quantity: %w", item.ProductName, ErrInvalidInput)
		}
		if !item.UnitPrice.IsPositive() {
			return nil, fmt.Errorf("order service: item %q has non-positive price: %w", item.ProductName, ErrInvalidInput)
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		if item.IsMemberProduct {
			isMemberOrder = true
		}
	}

	order := &domain.Order{
		Number:        ordernum.Generate(buyerID, time.Now()),
		BuyerID:       buyerID,
		MerchantID:    merchantID,
		Total:         total,
		IsMemberOrder: isMemberOrder,
		Status:        domain.OrderStatusPendingPay,
	}

	created, err := s.orderRepo.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("order service: failed to create order for buyer %d: %w", buyerID, err)
	}

	return created, nil
}

// GetOrder возвращает заказ по номеру
func (s *OrderService) GetOrder(ctx context.Context, number string) (*domain.Order, error) {
	if !ordernum.Validate(number) {
		return nil, ErrInvalidOrderNumber
	}

	order, err := s.orderRepo.GetOrderByNumber(ctx, number)
	if err != nil {
		// Не оборачиваем sentinel errors
		if errors.Is(err, postgres.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("order service: failed to get order %s: %w", number, err)
	}

	return order, nil
}

// OrdersByBuyer возвращает заказы покупателя от новых к старым
func (s *OrderService) OrdersByBuyer(ctx context.Context, buyerID int64) ([]*domain.Order, error) {
	orders, err := s.orderRepo.GetOrdersByBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("order service: failed to get orders for buyer %d: %w", buyerID, err)
	}

	return orders, nil
}
