package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/repository/postgres"
	"go.uber.org/zap"
)

// Типы привилегированных операций в журнале аудита
const (
	auditOpSetStar  = "set_star_level"
	auditOpSetTier  = "set_unilevel_tier"
	auditOpFreeze   = "freeze"
	auditOpUnfreeze = "unfreeze"
	auditOpDelete   = "delete"
)

// AdminService выполняет привилегированные операции над аккаунтами.
// Авторизацию субъекта проводит внешний слой; сервис проверяет только роль
// и пишет каждую операцию в журнал аудита.
type AdminService struct {
	accountRepo domain.AccountRepository
	auditRepo   domain.AuditRepository
	logger      *zap.Logger
}

// NewAdminService создает новый AdminService
func NewAdminService(accountRepo domain.AccountRepository, auditRepo domain.AuditRepository, logger *zap.Logger) *AdminService {
	return &AdminService{
		accountRepo: accountRepo,
		auditRepo:   auditRepo,
		logger:      logger,
	}
}

// SetStarLevel выставляет звездный уровень напрямую.
// Административный обход монотонности: уровень можно и понизить.
func (s *AdminService) SetStarLevel(ctx context.Context, actor domain.Principal, targetID int64, level int, reason string) error {
	if !actor.CanAdminister() {
		return ErrForbidden
	}
	if level < 0 || level > domain.MaxStarLevel {
		return fmt.Errorf("admin service: star level %d is out of 0..%d: %w", level, domain.MaxStarLevel, ErrInvalidInput)
	}

	account, err := s.getTarget(ctx, targetID)
	if err != nil {
		return err
	}

	if err := s.accountRepo.SetStarLevel(ctx, targetID, level); err != nil {
		return fmt.Errorf("admin service: failed to set star level for account %d: %w", targetID, err)
	}

	s.audit(ctx, actor, targetID, auditOpSetStar, account.StarLevel, level, reason)
	return nil
}

// SetUnilevelTier выставляет партнерский уровень напрямую
func (s *AdminService) SetUnilevelTier(ctx context.Context, actor domain.Principal, targetID int64, tier int, reason string) error {
	if !actor.CanAdminister() {
		return ErrForbidden
	}
	if tier < 0 || tier > domain.MaxUnilevelTier {
		return fmt.Errorf("admin service: tier %d is out of 0..%d: %w", tier, domain.MaxUnilevelTier, ErrInvalidInput)
	}

	account, err := s.getTarget(ctx, targetID)
	if err != nil {
		return err
	}

	if err := s.accountRepo.SetUnilevelTier(ctx, targetID, tier); err != nil {
		return fmt.Errorf("admin service: failed to set tier for account %d: %w", targetID, err)
	}

	s.audit(ctx, actor, targetID, auditOpSetTier, account.UnilevelTier, tier, reason)
	return nil
}

// Freeze замораживает аккаунт
func (s *AdminService) Freeze(ctx context.Context, actor domain.Principal, targetID int64, reason string) error {
	return s.setStatus(ctx, actor, targetID, domain.AccountStatusFrozen, auditOpFreeze, reason)
}

// Unfreeze размораживает аккаунт
func (s *AdminService) Unfreeze(ctx context.Context, actor domain.Principal, targetID int64, reason string) error {
	return s.setStatus(ctx, actor, targetID, domain.AccountStatusNormal, auditOpUnfreeze, reason)
}

// Delete помечает аккаунт удаленным. Статус терминальный.
func (s *AdminService) Delete(ctx context.Context, actor domain.Principal, targetID int64, reason string) error {
	return s.setStatus(ctx, actor, targetID, domain.AccountStatusDeleted, auditOpDelete, reason)
}

func (s *AdminService) setStatus(ctx context.Context, actor domain.Principal, targetID int64, status domain.AccountStatus, opType, reason string) error {
	if !actor.CanAdminister() {
		return ErrForbidden
	}

	account, err := s.getTarget(ctx, targetID)
	if err != nil {
		return err
	}

	// Из deleted выхода нет
	if account.Status == domain.AccountStatusDeleted {
		return domain.ErrAccountDeleted
	}

	if account.Status == status {
		return nil
	}

	if err := s.accountRepo.SetStatus(ctx, targetID, status); err != nil {
		return fmt.Errorf("admin service: failed to set status for account %d: %w", targetID, err)
	}

	s.audit(ctx, actor, targetID, opType, int(account.Status), int(status), reason)
	return nil
}

// AuditTrail возвращает журнал операций по аккаунту от новых к старым
func (s *AdminService) AuditTrail(ctx context.Context, actor domain.Principal, targetID int64, limit, offset int) ([]*domain.AuditRecord, error) {
	if !actor.CanAdminister() {
		return nil, ErrForbidden
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.auditRepo.ByTarget(ctx, targetID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("admin service: failed to get audit trail for account %d: %w", targetID, err)
	}

	return records, nil
}

func (s *AdminService) getTarget(ctx context.Context, targetID int64) (*domain.Account, error) {
	account, err := s.accountRepo.GetAccountByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("admin service: failed to get account %d: %w", targetID, err)
	}

	return account, nil
}

// audit пишет запись журнала; изменение уже применено, поэтому сбой журнала
// не откатывает операцию, но обязан попасть в лог
func (s *AdminService) audit(ctx context.Context, actor domain.Principal, targetID int64, opType string, oldValue, newValue int, reason string) {
	err := s.auditRepo.Record(ctx, &domain.AuditRecord{
		ActorID:  actor.AccountID,
		TargetID: targetID,
		OpType:   opType,
		OldValue: oldValue,
		NewValue: newValue,
		Reason:   reason,
	})
	if err != nil {
		s.logger.Error("failed to record audit entry",
			zap.String("op_type", opType),
			zap.Int64("actor_id", actor.AccountID),
			zap.Int64("target_id", targetID),
			zap.Error(err),
		)
	}
}
