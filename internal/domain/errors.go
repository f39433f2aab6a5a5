package domain

import (
	"errors"
	"fmt"
)

// Ошибки аккаунтов
var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountDeleted  = errors.New("account is deleted")
)

// Ошибки леджера
var (
	ErrDuplicateEntry = errors.New("ledger entry with this dedup key already exists")
	ErrInvalidChannel = errors.New("unknown ledger channel")
)

// Ошибки повышений
var (
	ErrStarCeiling  = errors.New("star level is already at the ceiling")
	ErrTierNotAbove = errors.New("target tier is not above the current tier")
)

// PromotionIneligibleError описывает отказ в повышении партнерского уровня с именованной причиной
type PromotionIneligibleError struct {
	Reason string
}

func (e *PromotionIneligibleError) Error() string {
	return fmt.Sprintf("promotion ineligible: %s", e.Reason)
}

// NewPromotionIneligible создает ошибку отказа в повышении
func NewPromotionIneligible(format string, args ...any) *PromotionIneligibleError {
	return &PromotionIneligibleError{Reason: fmt.Sprintf(format, args...)}
}
