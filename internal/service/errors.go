package service

import "errors"

// Ошибки аутентификации и ввода
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrReferrerNotFound   = errors.New("referrer not found")
	ErrAccountInactive    = errors.New("account is not active")
	ErrForbidden          = errors.New("operation requires administrator role")
)

// Ошибки реферального графа
var (
	ErrAlreadyBound   = errors.New("user already has a referrer")
	ErrCyclicReferral = errors.New("referral binding would create a cycle")
)

// Ошибки леджера
var (
	ErrInvalidChannel      = errors.New("unknown ledger channel")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Ошибки заказов и расчетов
var (
	ErrInvalidOrderNumber = errors.New("invalid order number")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderStateConflict = errors.New("order is in a conflicting state")
)

// Ошибки распределения фондов
var (
	ErrNoRecipients     = errors.New("no eligible recipients for distribution")
	ErrInsufficientPool = errors.New("pool balance is insufficient for distribution")
)
