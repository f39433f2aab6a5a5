package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/repository/postgres"
)

// qualifiedNodeDirectNeed число прямых 6-звездных у квалифицированного узла линии
const qualifiedNodeDirectNeed = 3

// Требования к званию почетного директора
const (
	honorDirectorDirectNeed = 3
	honorDirectorTeamNeed   = 10
)

// PromotionService вычисляет и применяет повышения уровней.
// Право на повышение всегда вычисляется по текущему графу, без кеширования.
type PromotionService struct {
	accountRepo  domain.AccountRepository
	referralRepo domain.ReferralRepository

	needs        [3]int
	maxTeamLayer int
}

// NewPromotionService создает новый PromotionService
func NewPromotionService(accountRepo domain.AccountRepository, referralRepo domain.ReferralRepository, needs [3]int, maxTeamLayer int) *PromotionService {
	return &PromotionService{
		accountRepo:  accountRepo,
		referralRepo: referralRepo,
		needs:        needs,
		maxTeamLayer: maxTeamLayer,
	}
}

// UpgradeStar повышает звездный уровень на единицу.
// Возвращает новый уровень; выше потолка не поднимает.
func (s *PromotionService) UpgradeStar(ctx context.Context, userID int64) (int, error) {
	account, err := s.accountRepo.GetAccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			return 0, domain.ErrAccountNotFound
		}
		return 0, fmt.Errorf("promotion service: failed to get account %d: %w", userID, err)
	}

	if account.StarLevel >= domain.MaxStarLevel {
		return account.StarLevel, domain.ErrStarCeiling
	}

	newLevel := account.StarLevel + 1
	if err := s.accountRepo.SetStarLevel(ctx, userID, newLevel); err != nil {
		return 0, fmt.Errorf("promotion service: failed to set star level %d for account %d: %w", newLevel, userID, err)
	}

	return newLevel, nil
}

// EvaluateUnilevel проверяет право на партнерский уровень targetTier.
// Возвращает nil при выполнении всех условий, иначе PromotionIneligibleError
// с именованной причиной отказа.
func (s *PromotionService) EvaluateUnilevel(ctx context.Context, userID int64, targetTier int) error {
	if targetTier < 1 || targetTier > domain.MaxUnilevelTier {
		return domain.NewPromotionIneligible("tier %d is out of range 1..%d", targetTier, domain.MaxUnilevelTier)
	}

	account, err := s.accountRepo.GetAccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("promotion service: failed to get account %d: %w", userID, err)
	}

	if account.StarLevel < domain.MaxStarLevel {
		return domain.NewPromotionIneligible("star level %d is below the required %d", account.StarLevel, domain.MaxStarLevel)
	}

	need := s.needs[targetTier-1]

	children, err := s.referralRepo.DirectChildren(ctx, userID)
	if err != nil {
		return fmt.Errorf("promotion service: failed to list direct children of %d: %w", userID, err)
	}

	if len(children) < need {
		return domain.NewPromotionIneligible("only %d direct lines, %d required", len(children), need)
	}

	stars, err := s.accountRepo.StarLevels(ctx, children)
	if err != nil {
		return fmt.Errorf("promotion service: failed to load star levels for children of %d: %w", userID, err)
	}

	sixStar := 0
	for _, id := range children {
		if stars[id] >= domain.MaxStarLevel {
			sixStar++
		}
	}
	if sixStar < need {
		return domain.NewPromotionIneligible("only %d direct six-star referrals, %d required", sixStar, need)
	}

	// Первые need линий по порядку привязки: в каждой должен найтись
	// 6-звездный узел с тремя прямыми 6-звездными
	for i := 0; i < need; i++ {
		ok, err := s.lineHasQualifiedNode(ctx, children[i])
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewPromotionIneligible("line %d has no six-star node with %d direct six-star referrals", i+1, qualifiedNodeDirectNeed)
		}
	}

	return nil
}

// lineHasQualifiedNode обходит поддерево линии в ширину с ограничением глубины
// в поисках 6-звездного узла с qualifiedNodeDirectNeed прямыми 6-звездными
func (s *PromotionService) lineHasQualifiedNode(ctx context.Context, rootID int64) (bool, error) {
	frontier := []int64{rootID}
	for layer := 0; layer <= s.maxTeamLayer && len(frontier) > 0; layer++ {
		stars, err := s.accountRepo.StarLevels(ctx, frontier)
		if err != nil {
			return false, fmt.Errorf("promotion service: failed to load star levels in line %d: %w", rootID, err)
		}

		var next []int64
		for _, id := range frontier {
			children, err := s.referralRepo.DirectChildren(ctx, id)
			if err != nil {
				return false, fmt.Errorf("promotion service: failed to list children of %d: %w", id, err)
			}

			if stars[id] >= domain.MaxStarLevel && len(children) >= qualifiedNodeDirectNeed {
				childStars, err := s.accountRepo.StarLevels(ctx, children)
				if err != nil {
					return false, fmt.Errorf("promotion service: failed to load child star levels of %d: %w", id, err)
				}
				count := 0
				for _, childID := range children {
					if childStars[childID] >= domain.MaxStarLevel {
						count++
					}
				}
				if count >= qualifiedNodeDirectNeed {
					return true, nil
				}
			}

			next = append(next, children...)
		}

		frontier = next
	}

	return false, nil
}

// PromoteUnilevel проверяет право и сохраняет новый партнерский уровень.
// Уровень растет строго монотонно.
func (s *PromotionService) PromoteUnilevel(ctx context.Context, userID int64, targetTier int) error {
	account, err := s.accountRepo.GetAccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("promotion service: failed to get account %d: %w", userID, err)
	}

	if targetTier <= account.UnilevelTier {
		return domain.ErrTierNotAbove
	}

	if err := s.EvaluateUnilevel(ctx, userID, targetTier); err != nil {
		return err
	}

	if err := s.accountRepo.SetUnilevelTier(ctx, userID, targetTier); err != nil {
		return fmt.Errorf("promotion service: failed to set tier %d for account %d: %w", targetTier, userID, err)
	}

	return nil
}

// CheckHonorDirector проверяет условия звания почетного директора и присваивает его.
// Возвращает true, если звание присвоено этим вызовом.
func (s *PromotionService) CheckHonorDirector(ctx context.Context, userID int64) (bool, error) {
	account, err := s.accountRepo.GetAccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			return false, domain.ErrAccountNotFound
		}
		return false, fmt.Errorf("promotion service: failed to get account %d: %w", userID, err)
	}

	if account.HonorDirector || account.StarLevel < domain.MaxStarLevel {
		return false, nil
	}

	children, err := s.referralRepo.DirectChildren(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("promotion service: failed to list children of %d: %w", userID, err)
	}
	if len(children) == 0 {
		return false, nil
	}

	stars, err := s.accountRepo.StarLevels(ctx, children)
	if err != nil {
		return false, fmt.Errorf("promotion service: failed to load child star levels of %d: %w", userID, err)
	}

	direct := 0
	for _, id := range children {
		if stars[id] >= domain.MaxStarLevel {
			direct++
		}
	}
	if direct < honorDirectorDirectNeed {
		return false, nil
	}

	total, err := s.countTeamSixStar(ctx, userID)
	if err != nil {
		return false, err
	}
	if total < honorDirectorTeamNeed {
		return false, nil
	}

	if err := s.accountRepo.SetHonorDirector(ctx, userID); err != nil {
		return false, fmt.Errorf("promotion service: failed to flag honor director %d: %w", userID, err)
	}

	return true, nil
}

// countTeamSixStar считает 6-звездных участников команды с ограничением глубины
func (s *PromotionService) countTeamSixStar(ctx context.Context, userID int64) (int, error) {
	count := 0

	frontier := []int64{userID}
	for layer := 1; layer <= s.maxTeamLayer && len(frontier) > 0; layer++ {
		var next []int64
		for _, parent := range frontier {
			children, err := s.referralRepo.DirectChildren(ctx, parent)
			if err != nil {
				return 0, fmt.Errorf("promotion service: failed to list children of %d: %w", parent, err)
			}
			next = append(next, children...)
		}

		if len(next) == 0 {
			break
		}

		stars, err := s.accountRepo.StarLevels(ctx, next)
		if err != nil {
			return 0, fmt.Errorf("promotion service: failed to load star levels: %w", err)
		}
		for _, id := range next {
			if stars[id] >= domain.MaxStarLevel {
				count++
			}
		}

		frontier = next
	}

	return count, nil
}
