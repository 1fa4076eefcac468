// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrParticipantNotFound      = errors.New("participant not found")
	ErrParticipantAlreadyExists = errors.New("participant already exists")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrChannelNotFound          = errors.New("channel not found")
	ErrChannelAlreadyExists     = errors.New("channel already exists")
	ErrChannelInactive          = errors.New("channel inactive")
	ErrObligationNotFound       = errors.New("obligation not found")
	ErrObligationNotPending     = errors.New("obligation not pending")
	ErrSettlementNotFound       = errors.New("settlement not found")
	ErrSelfObligation           = errors.New("sender and receiver must differ")
	ErrDuplicateRequest         = errors.New("duplicate request")
	ErrInvalidAmount            = errors.New("amount must be a positive decimal")

	// Netting errors
	ErrInvariantViolation = errors.New("netting invariant violation")
	ErrRunInProgress      = errors.New("settlement run already in progress")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
