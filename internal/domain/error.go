package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAccessDenied       = errors.New("access denied")
	ErrDeliveryFailure    = errors.New("message delivery failed")
	ErrAlreadyProcessed   = errors.New("payment request already processed")
	ErrPaymentInfoMissing = errors.New("payment info is not configured")
	ErrUnsupportedContent = errors.New("unsupported content kind")
	ErrKeyRevoked         = errors.New("authorization key revoked")

	ErrBroadcastInProgress = errors.New("another broadcast is in progress")
	ErrLockHeld            = errors.New("lock is held by another owner")

	// Storage plumbing
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
