package ports

import "errors"

// Standard application-level errors.
// Adapters and core packages wrap underlying errors with these sentinels so
// callers can branch with errors.Is without caring about the source.
var (
	// General
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("invalid input")

	// State machine
	ErrInvalidState = errors.New("only active trades may be updated")

	// Transport: the message a reply targets no longer exists or is invalid.
	// Anything else from the transport is non-retryable for that stage.
	ErrReplyTargetInvalid = errors.New("reply target message is invalid")

	// Automation wiring: missing or inactive channel/template. The affected
	// automation is skipped; siblings proceed.
	ErrConfiguration = errors.New("invalid or missing configuration")

	// Exchange
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")

	// Database
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
)
