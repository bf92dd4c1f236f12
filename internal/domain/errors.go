package domain

import "errors"

// Sentinel errors classified per the error-handling policy table: each
// names a kind of failure, not a specific cause, so callers can branch
// with errors.Is regardless of which component raised it.
var (
	ErrValidation      = errors.New("validation failed")
	ErrRetryExhausted  = errors.New("retries exhausted")
	ErrRiskLimit       = errors.New("risk limit breached")
	ErrDataIntegrity   = errors.New("data integrity check failed")
	ErrTokenUnavailable = errors.New("no valid token and re-issuance failed")
	ErrMarketClosed    = errors.New("no venue open for routing")
	ErrNotFound        = errors.New("not found")
)
