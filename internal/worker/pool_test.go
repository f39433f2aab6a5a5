package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/service"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type orderRepoMock struct {
	mock.Mock
}

func (m *orderRepoMock) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	args := m.Called(ctx, order)
	if o := args.Get(0); o != nil {
		return o.(*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *orderRepoMock) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	args := m.Called(ctx, number)
	if o := args.Get(0); o != nil {
		return o.(*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *orderRepoMock) GetOrdersByBuyer(ctx context.Context, buyerID int64) ([]*domain.Order, error) {
	args := m.Called(ctx, buyerID)
	if o := args.Get(0); o != nil {
		return o.([]*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *orderRepoMock) MarkPaid(ctx context.Context, number, externalTxnID string, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, number, externalTxnID, paidAt)
	return args.Bool(0), args.Error(1)
}

func (m *orderRepoMock) TransitionStatus(ctx context.Context, number string, from, to domain.OrderStatus) (bool, error) {
	args := m.Called(ctx, number, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *orderRepoMock) ClaimMemberStar(ctx context.Context, number string, star int) (int, error) {
	args := m.Called(ctx, number, star)
	return args.Int(0), args.Error(1)
}

func (m *orderRepoMock) GetUnsettledPaid(ctx context.Context, olderThan time.Duration) ([]*domain.Order, error) {
	args := m.Called(ctx, olderThan)
	if o := args.Get(0); o != nil {
		return o.([]*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

type settlerMock struct {
	mock.Mock
}

func (m *settlerMock) Settle(ctx context.Context, orderNumber string) error {
	args := m.Called(ctx, orderNumber)
	return args.Error(0)
}

func TestPool_SettleOrder(t *testing.T) {
	orderRepo := new(orderRepoMock)
	settler := new(settlerMock)
	logger, _ := zap.NewDevelopment()

	pool := NewPool(1, 10, orderRepo, settler, logger, time.Minute, time.Minute)

	ctx := context.Background()
	orderNumber := "MO202608290001"

	settler.On("Settle", mock.Anything, orderNumber).Return(nil).Once()

	pool.settleOrder(ctx, orderNumber)

	settler.AssertExpectations(t)
}

func TestPool_SettleOrder_StateConflict(t *testing.T) {
	orderRepo := new(orderRepoMock)
	settler := new(settlerMock)
	logger, _ := zap.NewDevelopment()

	pool := NewPool(1, 10, orderRepo, settler, logger, time.Minute, time.Minute)

	ctx := context.Background()
	orderNumber := "MO202608290002"

	// Заказ ушел дальше по конвейеру между сканом и расчетом
	settler.On("Settle", mock.Anything, orderNumber).Return(service.ErrOrderStateConflict).Once()

	pool.settleOrder(ctx, orderNumber)

	settler.AssertExpectations(t)
}

func TestPool_SettleOrder_NotFound(t *testing.T) {
	orderRepo := new(orderRepoMock)
	settler := new(settlerMock)
	logger, _ := zap.NewDevelopment()

	pool := NewPool(1, 10, orderRepo, settler, logger, time.Minute, time.Minute)

	ctx := context.Background()

	settler.On("Settle", mock.Anything, "MO202608290003").Return(service.ErrOrderNotFound).Once()

	pool.settleOrder(ctx, "MO202608290003")

	settler.AssertExpectations(t)
}

func TestPool_ScanUnsettledOrders(t *testing.T) {
	orderRepo := new(orderRepoMock)
	settler := new(settlerMock)
	logger, _ := zap.NewDevelopment()

	pool := NewPool(1, 10, orderRepo, settler, logger, time.Minute, 5*time.Minute)

	ctx := context.Background()

	unsettled := []*domain.Order{
		{ID: 1, Number: "MO202608290011", Status: domain.OrderStatusPaid},
		{ID: 2, Number: "MO202608290012", Status: domain.OrderStatusPaid},
	}

	orderRepo.On("GetUnsettledPaid", mock.Anything, 5*time.Minute).Return(unsettled, nil).Once()

	pool.scanUnsettledOrders(ctx)

	// Проверяем, что заказы добавлены в очередь
	for i := 0; i < len(unsettled); i++ {
		select {
		case num := <-pool.queue:
			if num != "MO202608290011" && num != "MO202608290012" {
				t.Errorf("unexpected order number in queue: %s", num)
			}
		case <-time.After(100 * time.Millisecond):
			t.Error("expected order in queue, got timeout")
		}
	}

	orderRepo.AssertExpectations(t)
}

func TestPool_ScanUnsettledOrders_QueueFull(t *testing.T) {
	orderRepo := new(orderRepoMock)
	settler := new(settlerMock)
	logger, _ := zap.NewDevelopment()

	// Очередь на один элемент: второй заказ должен быть пропущен без блокировки
	pool := NewPool(1, 1, orderRepo, settler, logger, time.Minute, time.Minute)

	ctx := context.Background()

	unsettled := []*domain.Order{
		{ID: 1, Number: "MO202608290021", Status: domain.OrderStatusPaid},
		{ID: 2, Number: "MO202608290022", Status: domain.OrderStatusPaid},
	}

	orderRepo.On("GetUnsettledPaid", mock.Anything, time.Minute).Return(unsettled, nil).Once()

	pool.scanUnsettledOrders(ctx)

	select {
	case num := <-pool.queue:
		if num != "MO202608290021" {
			t.Errorf("unexpected order number in queue: %s", num)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("expected order in queue, got timeout")
	}

	select {
	case num := <-pool.queue:
		t.Errorf("queue should be empty, got: %s", num)
	default:
	}
}

func TestPool_StartStop(t *testing.T) {
	orderRepo := new(orderRepoMock)
	settler := new(settlerMock)
	logger := zap.NewNop()

	pool := NewPool(2, 10, orderRepo, settler, logger, time.Hour, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	settler.On("Settle", mock.Anything, "MO202608290031").Return(nil).Once().Run(func(args mock.Arguments) {
		close(done)
	})

	pool.Start(ctx)
	pool.queue <- "MO202608290031"

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("order was not settled by worker")
	}

	cancel()
	pool.Stop()

	settler.AssertExpectations(t)
}

func TestPool_StopWaitsForScanner(t *testing.T) {
	orderRepo := new(orderRepoMock)
	settler := new(settlerMock)
	logger := zap.NewNop()

	// Тесная очередь и частый скан держат сканер на отправке в очередь
	pool := NewPool(2, 4, orderRepo, settler, logger, time.Millisecond, time.Minute)

	unsettled := make([]*domain.Order, 0, 16)
	for i := 0; i < 16; i++ {
		unsettled = append(unsettled, &domain.Order{
			ID:     int64(i + 1),
			Number: fmt.Sprintf("MO20260829%04d", i+40),
			Status: domain.OrderStatusPaid,
		})
	}
	orderRepo.On("GetUnsettledPaid", mock.Anything, time.Minute).Return(unsettled, nil)
	settler.On("Settle", mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	time.Sleep(20 * time.Millisecond)

	// Stop обязан дождаться выхода сканера перед закрытием очереди,
	// иначе отправка в закрытый канал роняет процесс
	cancel()
	require.NotPanics(t, pool.Stop)
}
