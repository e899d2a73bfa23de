// Package apperr defines the error taxonomy surfaced by the loyalty and challenge services.
package apperr

import "errors"

// Kind classifies an error for callers deciding how to respond.
type Kind int

const (
	// KindInternal is a storage failure or unexpected condition.
	KindInternal Kind = iota
	// KindValidation is missing or malformed input.
	KindValidation
	// KindNotEligible is a business-rule violation.
	KindNotEligible
	// KindNotFound is an unknown identifier.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotEligible:
		return "not_eligible"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified error with a stable code and a user-facing message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Sentinel errors. Compare with errors.Is; wrapped forms keep their identity.
var (
	ErrInvalidRequest = newError(KindValidation, "invalid_request", "invalid request")

	ErrNoLedger           = newError(KindNotEligible, "no_ledger", "no loyalty account found")
	ErrRewardNotEligible  = newError(KindNotEligible, "reward_not_eligible", "reward not available for your tier")
	ErrInsufficientPoints = newError(KindNotEligible, "insufficient_points", "insufficient points")
	ErrAlreadyJoined      = newError(KindNotEligible, "already_joined", "already joined this challenge")
	ErrNoActiveChallenge  = newError(KindNotEligible, "no_active_challenge", "no active challenge")
	ErrNotParticipating   = newError(KindNotEligible, "not_participating", "not participating in the active challenge")
	ErrChallengeOverlap   = newError(KindNotEligible, "challenge_overlap", "another active challenge overlaps this window")

	ErrNotFound          = newError(KindNotFound, "not_found", "not found")
	ErrVoucherNotFound   = newError(KindNotFound, "voucher_not_found", "voucher not found or no longer available")
	ErrChallengeNotFound = newError(KindNotFound, "challenge_not_found", "challenge not found")
)

// Validation returns a validation error with a specific message that still
// matches ErrInvalidRequest under errors.Is.
func Validation(message string) error {
	return &validationError{message: message}
}

type validationError struct {
	message string
}

func (e *validationError) Error() string {
	return e.message
}

func (e *validationError) Unwrap() error {
	return ErrInvalidRequest
}

// KindOf reports the kind of err; unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf reports the stable code of err, or "internal_error".
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "internal_error"
}

// MessageOf reports the user-facing message of err without any wrapping
// context. Validation errors keep their specific text. Unclassified errors
// report an empty string.
func MessageOf(err error) string {
	var vErr *validationError
	if errors.As(err, &vErr) {
		return vErr.message
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}
