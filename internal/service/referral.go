package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/repository/postgres"
)

// ReferralService управляет реферальным графом и обходом команды
type ReferralService struct {
	accountRepo  domain.AccountRepository
	referralRepo domain.ReferralRepository

	maxTeamLayer    int
	maxAncestorWalk int
}

// NewReferralService создает новый ReferralService
func NewReferralService(accountRepo domain.AccountRepository, referralRepo domain.ReferralRepository, maxTeamLayer, maxAncestorWalk int) *ReferralService {
	return &ReferralService{
		accountRepo:     accountRepo,
		referralRepo:    referralRepo,
		maxTeamLayer:    maxTeamLayer,
		maxAncestorWalk: maxAncestorWalk,
	}
}

// Bind привязывает участника к пригласившему.
// Привязка необратима: одно исходящее ребро на участника, циклы отвергаются.
func (s *ReferralService) Bind(ctx context.Context, userID, referrerID int64) error {
	if userID == referrerID {
		return ErrCyclicReferral
	}

	if _, err := s.accountRepo.GetAccountByID(ctx, referrerID); err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			return ErrReferrerNotFound
		}
		return fmt.Errorf("referral service: failed to check referrer %d: %w", referrerID, err)
	}

	err := s.referralRepo.Bind(ctx, userID, referrerID, s.maxAncestorWalk)
	if err != nil {
		// Не оборачиваем sentinel errors
		if errors.Is(err, postgres.ErrAlreadyBound) {
			return ErrAlreadyBound
		}
		if errors.Is(err, postgres.ErrCyclicReferral) {
			return ErrCyclicReferral
		}
		return fmt.Errorf("referral service: failed to bind %d to %d: %w", userID, referrerID, err)
	}

	return nil
}

// Referrer возвращает пригласившего участника или nil, если привязки нет
func (s *ReferralService) Referrer(ctx context.Context, userID int64) (*domain.ReferralEdge, error) {
	edge, err := s.referralRepo.Referrer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("referral service: failed to get referrer of %d: %w", userID, err)
	}

	return edge, nil
}

// clampLayers приводит запрошенную глубину обхода к допустимой:
// неположительное значение и превышение потолка дают потолок
func (s *ReferralService) clampLayers(maxLayer int) int {
	if maxLayer <= 0 || maxLayer > s.maxTeamLayer {
		return s.maxTeamLayer
	}
	return maxLayer
}

// Team обходит поддерево участника в ширину до maxLayer слоев.
// Слой 1 содержит прямых приглашенных, порядок внутри слоя детерминирован.
func (s *ReferralService) Team(ctx context.Context, userID int64, maxLayer int) ([]*domain.TeamMember, error) {
	var members []*domain.TeamMember

	depth := s.clampLayers(maxLayer)
	frontier := []int64{userID}
	for layer := 1; layer <= depth && len(frontier) > 0; layer++ {
		var next []int64
		for _, parent := range frontier {
			children, err := s.referralRepo.DirectChildren(ctx, parent)
			if err != nil {
				return nil, fmt.Errorf("referral service: failed to list children of %d: %w", parent, err)
			}
			next = append(next, children...)
		}

		if len(next) == 0 {
			break
		}

		stars, err := s.accountRepo.StarLevels(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("referral service: failed to load star levels for layer %d: %w", layer, err)
		}

		for _, id := range next {
			members = append(members, &domain.TeamMember{
				UserID:    id,
				StarLevel: stars[id],
				Layer:     layer,
			})
		}

		frontier = next
	}

	return members, nil
}

// TeamSize возвращает размер команды участника без него самого,
// считая не глубже maxLayer слоев
func (s *ReferralService) TeamSize(ctx context.Context, userID int64, maxLayer int) (int, error) {
	count := 0

	depth := s.clampLayers(maxLayer)
	frontier := []int64{userID}
	for layer := 1; layer <= depth && len(frontier) > 0; layer++ {
		var next []int64
		for _, parent := range frontier {
			children, err := s.referralRepo.DirectChildren(ctx, parent)
			if err != nil {
				return 0, fmt.Errorf("referral service: failed to list children of %d: %w", parent, err)
			}
			next = append(next, children...)
		}
		count += len(next)
		frontier = next
	}

	return count, nil
}

// IsAncestor сообщает, находится ли ancestorID на восходящей цепочке от userID
func (s *ReferralService) IsAncestor(ctx context.Context, ancestorID, userID int64) (bool, error) {
	current := userID
	for step := 0; step < s.maxAncestorWalk; step++ {
		edge, err := s.referralRepo.Referrer(ctx, current)
		if err != nil {
			return false, fmt.Errorf("referral service: failed to walk up from %d: %w", current, err)
		}
		if edge == nil {
			return false, nil
		}
		if edge.ReferrerID == ancestorID {
			return true, nil
		}
		current = edge.ReferrerID
	}

	return false, nil
}
