package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/service"
	"go.uber.org/zap"
)

// Settler проводит идемпотентный расчет заказа
type Settler interface {
	Settle(ctx context.Context, orderNumber string) error
}

// Pool представляет пул воркеров дорасчета оплаченных заказов.
// Это путь восстановления после "ответ отправлен, расчет не доведен":
// сканер находит оплаченные заказы старше грейс-периода и повторяет
// расчет, полагаясь на его идемпотентность.
type Pool struct {
	workers      int
	queue        chan string
	orderRepo    domain.OrderRepository
	settler      Settler
	logger       *zap.Logger
	workerWG     sync.WaitGroup
	scannerWG    sync.WaitGroup
	scanInterval time.Duration
	gracePeriod  time.Duration
}

// NewPool создает новый worker pool
func NewPool(
	workers int,
	queueSize int,
	orderRepo domain.OrderRepository,
	settler Settler,
	logger *zap.Logger,
	scanInterval time.Duration,
	gracePeriod time.Duration,
) *Pool {
	return &Pool{
		workers:      workers,
		queue:        make(chan string, queueSize),
		orderRepo:    orderRepo,
		settler:      settler,
		logger:       logger,
		scanInterval: scanInterval,
		gracePeriod:  gracePeriod,
	}
}

// Start запускает worker pool
func (p *Pool) Start(ctx context.Context) {
	// Запускаем воркеры
	for i := 0; i < p.workers; i++ {
		p.workerWG.Add(1)
		go p.worker(ctx, i)
	}

	// Запускаем сканер оплаченных заказов
	p.scannerWG.Add(1)
	go p.scanner(ctx)
}

// Stop останавливает worker pool. Вызывается после отмены контекста,
// переданного в Start. Сначала дожидаемся выхода сканера: закрывать
// очередь, пока сканер может в нее писать, нельзя.
func (p *Pool) Stop() {
	p.scannerWG.Wait()
	close(p.queue)
	p.workerWG.Wait()
}

// worker обрабатывает заказы из очереди
func (p *Pool) worker(ctx context.Context, id int) {
	defer p.workerWG.Done()

	p.logger.Info("worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping", zap.Int("worker_id", id))
			return
		case orderNumber, ok := <-p.queue:
			if !ok {
				return
			}
			p.settleOrder(ctx, orderNumber)
		}
	}
}

// scanner периодически ищет оплаченные заказы без расчета
func (p *Pool) scanner(ctx context.Context) {
	defer p.scannerWG.Done()

	ticker := time.NewTicker(p.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("scanner stopping")
			return
		case <-ticker.C:
			p.scanUnsettledOrders(ctx)
		}
	}
}

// scanUnsettledOrders отправляет недорасчитанные заказы в очередь.
// Грейс-период дает обработчику платежа время довести расчет самому.
func (p *Pool) scanUnsettledOrders(ctx context.Context) {
	orders, err := p.orderRepo.GetUnsettledPaid(ctx, p.gracePeriod)
	if err != nil {
		p.logger.Error("failed to get unsettled orders", zap.Error(err))
		return
	}

	for _, order := range orders {
		select {
		case p.queue <- order.Number:
			// Успешно добавлено в очередь
		case <-ctx.Done():
			return
		default:
			// Очередь заполнена, заказ попадет в следующий скан
			p.logger.Warn("queue is full, skipping order", zap.String("order", order.Number))
		}
	}
}

// settleOrder повторяет расчет одного заказа
func (p *Pool) settleOrder(ctx context.Context, orderNumber string) {
	p.logger.Debug("settling order", zap.String("order", orderNumber))

	err := p.settler.Settle(ctx, orderNumber)
	if err != nil {
		// Между сканом и расчетом заказ мог уйти дальше по конвейеру
		if errors.Is(err, service.ErrOrderStateConflict) || errors.Is(err, service.ErrOrderNotFound) {
			p.logger.Debug("order no longer settleable",
				zap.String("order", orderNumber),
				zap.Error(err),
			)
			return
		}

		p.logger.Error("failed to settle order",
			zap.String("order", orderNumber),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("order settled", zap.String("order", orderNumber))
}
