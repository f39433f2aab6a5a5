package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// OrderRepository реализует domain.OrderRepository
type OrderRepository struct {
	db DBTX
}

// NewOrderRepository создает новый OrderRepository
func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, order_number, buyer_id, merchant_id, total, is_member_order,
	status, external_txn_id, paid_at, settled_at, created_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID, &order.Number, &order.BuyerID, &order.MerchantID, &order.Total,
		&order.IsMemberOrder, &order.Status, &order.ExternalTxnID,
		&order.PaidAt, &order.SettledAt, &order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CreateOrder создает новый заказ в статусе pending_pay
func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	created, err := scanOrder(r.db.QueryRow(ctx,
		`INSERT INTO orders (order_number, buyer_id, merchant_id, total, is_member_order, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+orderColumns,
		order.Number, order.BuyerID, order.MerchantID, order.Total,
		order.IsMemberOrder, domain.OrderStatusPendingPay,
	))

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrOrderExists
		}
		return nil, fmt.Errorf("repository: failed to create order %q: %w", order.Number, err)
	}

	return created, nil
}

// GetOrderByNumber получает заказ по номеру
func (r *OrderRepository) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`,
		number,
	))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to get order by number %q: %w", number, err)
	}

	return order, nil
}

// GetOrdersByBuyer получает все заказы покупателя
func (r *OrderRepository) GetOrdersByBuyer(ctx context.Context, buyerID int64) ([]*domain.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE buyer_id = $1
		 ORDER BY created_at DESC`,
		buyerID,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to get orders for buyer %d: %w", buyerID, err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	return orders, nil
}

// MarkPaid выполняет условный переход pending_pay -> paid.
// Это единственный идемпотентный затвор против повторной доставки
// платежного уведомления: атомарный условный UPDATE, не read-then-write.
func (r *OrderRepository) MarkPaid(ctx context.Context, number, externalTxnID string, paidAt time.Time) (bool, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE orders
		 SET status = $1, external_txn_id = $2, paid_at = $3
		 WHERE order_number = $4 AND status = $5`,
		domain.OrderStatusPaid, externalTxnID, paidAt,
		number, domain.OrderStatusPendingPay,
	)

	if err != nil {
		return false, fmt.Errorf("repository: failed to mark order %q paid: %w", number, err)
	}

	return result.RowsAffected() > 0, nil
}

// TransitionStatus выполняет условный переход from -> to.
// Возвращает false без ошибки, если заказ не находится в статусе from.
func (r *OrderRepository) TransitionStatus(ctx context.Context, number string, from, to domain.OrderStatus) (bool, error) {
	var query string
	if to == domain.OrderStatusSettled {
		query = `UPDATE orders SET status = $1, settled_at = now() WHERE order_number = $2 AND status = $3`
	} else {
		query = `UPDATE orders SET status = $1 WHERE order_number = $2 AND status = $3`
	}

	result, err := r.db.Exec(ctx, query, to, number, from)
	if err != nil {
		return false, fmt.Errorf("repository: failed to transition order %q from %s to %s: %w", number, from, to, err)
	}

	return result.RowsAffected() > 0, nil
}

// ClaimMemberStar фиксирует звездный уровень покупателя на момент первого
// расчета членского заказа. Условный UPDATE пишет значение только в пустую
// колонку, поэтому повторы расчета читают уровень первого прохода, а не
// текущий уровень аккаунта.
func (r *OrderRepository) ClaimMemberStar(ctx context.Context, number string, star int) (int, error) {
	_, err := r.db.Exec(ctx,
		`UPDATE orders SET member_star_before = $1
		 WHERE order_number = $2 AND member_star_before IS NULL`,
		star, number,
	)

	if err != nil {
		return 0, fmt.Errorf("repository: failed to claim member star for order %q: %w", number, err)
	}

	var claimed int
	err = r.db.QueryRow(ctx,
		`SELECT member_star_before FROM orders WHERE order_number = $1`,
		number,
	).Scan(&claimed)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrOrderNotFound
		}
		return 0, fmt.Errorf("repository: failed to read claimed member star for order %q: %w", number, err)
	}

	return claimed, nil
}

// GetUnsettledPaid возвращает оплаченные, но не рассчитанные заказы старше порога
func (r *OrderRepository) GetUnsettledPaid(ctx context.Context, olderThan time.Duration) ([]*domain.Order, error) {
	cutoff := time.Now().Add(-olderThan)

	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status = $1 AND paid_at <= $2
		 ORDER BY paid_at ASC`,
		domain.OrderStatusPaid, cutoff,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to get unsettled paid orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan unsettled order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating unsettled orders: %w", err)
	}

	return orders, nil
}
