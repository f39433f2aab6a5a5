package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/repository/postgres"
	"github.com/avc/membership-platform/internal/utils/jwt"
	"github.com/avc/membership-platform/internal/utils/password"
)

// referralAlphabet исключает визуально похожие символы 0/O и 1/I
const referralAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const referralCodeLength = 6

// коллизии кода крайне редки, но повторяем генерацию на всякий случай
const maxCodeAttempts = 5

// AuthService регистрирует и аутентифицирует участников
type AuthService struct {
	accountRepo    domain.AccountRepository
	referralRepo   domain.ReferralRepository
	passwordHasher password.Hasher
	jwtManager     *jwt.Manager

	minPasswordLength int
	maxAncestorWalk   int
}

// NewAuthService создает новый AuthService
func NewAuthService(
	accountRepo domain.AccountRepository,
	referralRepo domain.ReferralRepository,
	passwordHasher password.Hasher,
	jwtManager *jwt.Manager,
	minPasswordLength int,
	maxAncestorWalk int,
) *AuthService {
	return &AuthService{
		accountRepo:       accountRepo,
		referralRepo:      referralRepo,
		passwordHasher:    passwordHasher,
		jwtManager:        jwtManager,
		minPasswordLength: minPasswordLength,
		maxAncestorWalk:   maxAncestorWalk,
	}
}

// Register регистрирует нового участника.
// Если передан реферальный код, новый аккаунт сразу привязывается к пригласившему.
func (s *AuthService) Register(ctx context.Context, mobile, userPassword, name, referralCode string) (string, error) {
	// Валидация входных данных
	if mobile == "" || userPassword == "" {
		return "", fmt.Errorf("auth service: empty mobile or password: %w", ErrInvalidInput)
	}
	if len(userPassword) < s.minPasswordLength {
		return "", fmt.Errorf("auth service: password shorter than %d characters: %w", s.minPasswordLength, ErrInvalidInput)
	}

	// Реферальный код проверяем до создания аккаунта,
	// чтобы не оставлять непривязанный аккаунт при опечатке в коде
	var referrer *domain.Account
	if referralCode != "" {
		var err error
		referrer, err = s.accountRepo.GetAccountByReferralCode(ctx, referralCode)
		if err != nil {
			if errors.Is(err, postgres.ErrAccountNotFound) {
				return "", ErrReferrerNotFound
			}
			return "", fmt.Errorf("auth service: failed to resolve referral code %q: %w", referralCode, err)
		}
		if referrer.Status != domain.AccountStatusNormal {
			return "", ErrReferrerNotFound
		}
	}

	hash, err := s.passwordHasher.Hash(userPassword)
	if err != nil {
		return "", fmt.Errorf("auth service: failed to hash password for %q: %w", mobile, err)
	}

	account, err := s.createWithFreshCode(ctx, mobile, hash, name)
	if err != nil {
		// Не оборачиваем sentinel error
		if errors.Is(err, domain.ErrAccountExists) {
			return "", ErrAccountExists
		}
		return "", fmt.Errorf("auth service: failed to register %q: %w", mobile, err)
	}

	if referrer != nil {
		if err := s.referralRepo.Bind(ctx, account.ID, referrer.ID, s.maxAncestorWalk); err != nil {
			return "", fmt.Errorf("auth service: failed to bind referrer for account %d: %w", account.ID, err)
		}
	}

	token, err := s.jwtManager.Generate(account.ID, "")
	if err != nil {
		return "", fmt.Errorf("auth service: failed to generate token for account %d: %w", account.ID, err)
	}

	return token, nil
}

// createWithFreshCode создает аккаунт, повторяя генерацию реферального кода при коллизии.
// Конфликт по мобильному отличаем от конфликта по коду повторным чтением.
func (s *AuthService) createWithFreshCode(ctx context.Context, mobile, hash, name string) (*domain.Account, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateReferralCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate referral code: %w", err)
		}

		account, err := s.accountRepo.CreateAccount(ctx, mobile, hash, name, code)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, postgres.ErrAccountExists) {
			return nil, err
		}

		if _, lookupErr := s.accountRepo.GetAccountByMobile(ctx, mobile); lookupErr == nil {
			return nil, domain.ErrAccountExists
		}
		// Мобильный свободен, значит столкнулись коды: пробуем еще раз
	}

	return nil, fmt.Errorf("referral code collision persisted after %d attempts", maxCodeAttempts)
}

// Login аутентифицирует участника
func (s *AuthService) Login(ctx context.Context, mobile, userPassword string) (string, error) {
	if mobile == "" || userPassword == "" {
		return "", fmt.Errorf("auth service: empty mobile or password: %w", ErrInvalidInput)
	}

	account, err := s.accountRepo.GetAccountByMobile(ctx, mobile)
	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("auth service: failed to get account %q: %w", mobile, err)
	}

	// Замороженные и удаленные аккаунты не входят
	if account.Status != domain.AccountStatusNormal {
		return "", ErrAccountInactive
	}

	if err := s.passwordHasher.Check(account.PasswordHash, userPassword); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.jwtManager.Generate(account.ID, "")
	if err != nil {
		return "", fmt.Errorf("auth service: failed to generate token for account %d: %w", account.ID, err)
	}

	return token, nil
}

// generateReferralCode возвращает случайный код из алфавита без похожих символов
func generateReferralCode() (string, error) {
	buf := make([]byte, referralCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	code := make([]byte, referralCodeLength)
	for i, b := range buf {
		code[i] = referralAlphabet[int(b)%len(referralAlphabet)]
	}

	return string(code), nil
}
