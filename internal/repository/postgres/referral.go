package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ReferralRepository реализует domain.ReferralRepository
type ReferralRepository struct {
	db DBTX
}

// NewReferralRepository создает новый ReferralRepository
func NewReferralRepository(db DBTX) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// bindLockKey общий advisory lock для всех операций привязки.
// Проверка предка и вставка должны быть атомарны относительно других привязок,
// иначе два конкурентных bind могут замкнуть цикл.
const bindLockKey = 0x7265666c // "refl"

// Bind привязывает пользователя к рекомендателю.
// Возвращает ErrAlreadyBound, если исходящее ребро уже есть, и ErrCyclicReferral,
// если referrer является потомком user (проверяется подъемом по цепочке предков).
func (r *ReferralRepository) Bind(ctx context.Context, userID, referrerID int64, maxAncestorWalk int) error {
	if userID == referrerID {
		return ErrCyclicReferral
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin bind transaction for user %d: %w", userID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback после Commit безопасен

	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(bindLockKey))
	if err != nil {
		return fmt.Errorf("repository: failed to acquire bind lock: %w", err)
	}

	// Подъем по цепочке предков рекомендателя: если встретили user, это цикл
	current := referrerID
	for layer := 0; layer < maxAncestorWalk; layer++ {
		var next int64
		err = tx.QueryRow(ctx,
			`SELECT referrer_id FROM user_referrals WHERE user_id = $1`,
			current,
		).Scan(&next)

		if errors.Is(err, pgx.ErrNoRows) {
			break // дошли до корня
		}
		if err != nil {
			return fmt.Errorf("repository: failed to walk ancestor chain from %d: %w", referrerID, err)
		}

		if next == userID {
			return ErrCyclicReferral
		}
		current = next
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_referrals (user_id, referrer_id) VALUES ($1, $2)`,
		userID, referrerID,
	)

	if err != nil {
		// Уникальный ключ на user_id: исходящее ребро уже существует
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyBound
		}
		return fmt.Errorf("repository: failed to bind user %d to referrer %d: %w", userID, referrerID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit bind for user %d: %w", userID, err)
	}

	return nil
}

// Referrer возвращает исходящее ребро пользователя или nil, если рекомендателя нет
func (r *ReferralRepository) Referrer(ctx context.Context, userID int64) (*domain.ReferralEdge, error) {
	edge := &domain.ReferralEdge{}

	err := r.db.QueryRow(ctx,
		`SELECT user_id, referrer_id, created_at FROM user_referrals WHERE user_id = $1`,
		userID,
	).Scan(&edge.UserID, &edge.ReferrerID, &edge.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repository: failed to get referrer for user %d: %w", userID, err)
	}

	return edge, nil
}

// DirectChildren возвращает прямых рефералов в порядке создания ребер
func (r *ReferralRepository) DirectChildren(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM user_referrals
		 WHERE referrer_id = $1
		 ORDER BY created_at ASC, user_id ASC`,
		userID,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to get direct children for user %d: %w", userID, err)
	}
	defer rows.Close()

	var children []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repository: failed to scan child id: %w", err)
		}
		children = append(children, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating direct children: %w", err)
	}

	return children, nil
}
