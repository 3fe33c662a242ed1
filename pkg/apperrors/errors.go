// Package apperrors holds the closed set of failure kinds the API exposes.
// Handlers map these to HTTP statuses; anything outside the set surfaces as a
// generic 500.
package apperrors

import "errors"

var (
	ErrAuthRequired = errors.New("Not authenticated")

	ErrUserNotFound    = errors.New("user not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrAdminNotFound   = errors.New("admin not found")

	ErrInvalidBet          = errors.New("invalid bet")
	ErrInvalidChoice       = errors.New("choice must be heads or tails")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient coins")
	ErrAlreadyInGame       = errors.New("already in game")
	ErrNotCashingOut       = errors.New("cashout session not found")

	ErrInvalidAdminPassword = errors.New("invalid username or password")
	ErrAdminDisabled        = errors.New("admin account disabled")

	ErrInvalidOAuthState = errors.New("invalid or expired oauth state")
	ErrOAuthExchange     = errors.New("oauth exchange failed")
)
