package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// AccountRepository реализует domain.AccountRepository
type AccountRepository struct {
	db DBTX
}

// NewAccountRepository создает новый AccountRepository
func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, mobile, password_hash, COALESCE(name, ''), referral_code,
	star_level, unilevel_tier, status, honor_director, level_changed_at, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	acc := &domain.Account{}
	err := row.Scan(
		&acc.ID, &acc.Mobile, &acc.PasswordHash, &acc.Name, &acc.ReferralCode,
		&acc.StarLevel, &acc.UnilevelTier, &acc.Status, &acc.HonorDirector,
		&acc.LevelChangedAt, &acc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// CreateAccount создает новый аккаунт
func (r *AccountRepository) CreateAccount(ctx context.Context, mobile, passwordHash, name, referralCode string) (*domain.Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx,
		`INSERT INTO accounts (mobile, password_hash, name, referral_code)
		 VALUES ($1, $2, NULLIF($3, ''), $4)
		 RETURNING `+accountColumns,
		mobile, passwordHash, name, referralCode,
	))

	if err != nil {
		// Нарушение уникальности mobile или referral_code
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("repository: failed to create account %q: %w", mobile, err)
	}

	return acc, nil
}

// GetAccountByMobile получает аккаунт по номеру телефона
func (r *AccountRepository) GetAccountByMobile(ctx context.Context, mobile string) (*domain.Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE mobile = $1`,
		mobile,
	))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("repository: failed to get account by mobile %q: %w", mobile, err)
	}

	return acc, nil
}

// GetAccountByID получает аккаунт по ID
func (r *AccountRepository) GetAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("repository: failed to get account by id %d: %w", id, err)
	}

	return acc, nil
}

// GetAccountByReferralCode получает аккаунт по реферальному коду
func (r *AccountRepository) GetAccountByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE referral_code = $1`,
		code,
	))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("repository: failed to get account by referral code %q: %w", code, err)
	}

	return acc, nil
}

// SetStarLevel устанавливает звездный уровень аккаунта
func (r *AccountRepository) SetStarLevel(ctx context.Context, id int64, level int) error {
	result, err := r.db.Exec(ctx,
		`UPDATE accounts SET star_level = $1, level_changed_at = now() WHERE id = $2`,
		level, id,
	)

	if err != nil {
		return fmt.Errorf("repository: failed to set star level for account %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// RaiseStarLevel поднимает звездный уровень до level, только если текущий ниже.
// Понижение невозможно: при гонке двух расчетов побеждает больший уровень.
func (r *AccountRepository) RaiseStarLevel(ctx context.Context, id int64, level int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE accounts SET star_level = $1, level_changed_at = now()
		 WHERE id = $2 AND star_level < $1`,
		level, id,
	)

	if err != nil {
		return fmt.Errorf("repository: failed to raise star level for account %d: %w", id, err)
	}

	return nil
}

// SetUnilevelTier устанавливает уровень соучредителя
func (r *AccountRepository) SetUnilevelTier(ctx context.Context, id int64, tier int) error {
	result, err := r.db.Exec(ctx,
		`UPDATE accounts SET unilevel_tier = $1, level_changed_at = now() WHERE id = $2`,
		tier, id,
	)

	if err != nil {
		return fmt.Errorf("repository: failed to set unilevel tier for account %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// SetStatus устанавливает статус аккаунта
func (r *AccountRepository) SetStatus(ctx context.Context, id int64, status domain.AccountStatus) error {
	result, err := r.db.Exec(ctx,
		`UPDATE accounts SET status = $1 WHERE id = $2`,
		status, id,
	)

	if err != nil {
		return fmt.Errorf("repository: failed to set status for account %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// SetHonorDirector помечает аккаунт как почетного директора
func (r *AccountRepository) SetHonorDirector(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx,
		`UPDATE accounts SET honor_director = TRUE WHERE id = $1`,
		id,
	)

	if err != nil {
		return fmt.Errorf("repository: failed to mark honor director for account %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// IDsWithMinStar возвращает действующие аккаунты со звездным уровнем не ниже minStar.
// Порядок по id фиксирует порядок начислений при распределении фондов.
func (r *AccountRepository) IDsWithMinStar(ctx context.Context, minStar int) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM accounts WHERE star_level >= $1 AND status = $2 ORDER BY id`,
		minStar, domain.AccountStatusNormal,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to list accounts with star >= %d: %w", minStar, err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// HonorDirectorIDs возвращает действующие аккаунты со званием почетного директора
func (r *AccountRepository) HonorDirectorIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM accounts WHERE honor_director AND status = $1 ORDER BY id`,
		domain.AccountStatusNormal,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to list honor directors: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repository: failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating account ids: %w", err)
	}

	return ids, nil
}

// StarLevels возвращает звездные уровни для набора аккаунтов
func (r *AccountRepository) StarLevels(ctx context.Context, ids []int64) (map[int64]int, error) {
	levels := make(map[int64]int, len(ids))
	if len(ids) == 0 {
		return levels, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, star_level FROM accounts WHERE id = ANY($1)`,
		ids,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to get star levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var level int
		if err := rows.Scan(&id, &level); err != nil {
			return nil, fmt.Errorf("repository: failed to scan star level: %w", err)
		}
		levels[id] = level
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating star levels: %w", err)
	}

	return levels, nil
}
