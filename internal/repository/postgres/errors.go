package postgres

import "errors"

// Ошибки аккаунтов
var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
)

// Ошибки реферального графа
var (
	ErrAlreadyBound   = errors.New("user already has a referrer")
	ErrCyclicReferral = errors.New("referral binding would create a cycle")
)

// Ошибки леджера
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateEntry      = errors.New("ledger entry with this dedup key already exists")
	ErrChainBroken         = errors.New("ledger snapshot chain is broken")
)

// Ошибки заказов и фондов
var (
	ErrOrderExists   = errors.New("order already exists")
	ErrOrderNotFound = errors.New("order not found")
	ErrPoolNegative  = errors.New("pool balance would go negative")
)
