// Package services defines the KALA business logic: message admission,
// share links, premium state, payments, profiles and sign-in.
//
// This file centralizes the service-level error taxonomy. Expected outcomes
// (invalid input, not found, quota, ownership) are returned as these
// sentinels; anything raised by storage or an auth provider is classified
// as ErrTimeout or ErrDependencyUnavailable. Translation into user-facing
// messages and HTTP status codes happens in the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Root kinds. Handlers branch on these with errors.Is.
var (
	// ErrInvalidInput indicates a field failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a username, user, profile or message is absent.
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded indicates a free inbox has reached its limit.
	ErrQuotaExceeded = errors.New("inbox full")

	// ErrForbidden indicates the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicateUsername indicates the username is already taken.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrAuthFailure indicates bad credentials or an unusable sign-in token.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrLinkExpired indicates a share token is unknown, replaced or past expiry.
	ErrLinkExpired = errors.New("link invalid or expired")

	// ErrPaymentNotCompleted indicates a callback reported a non-final status.
	ErrPaymentNotCompleted = errors.New("payment not completed")

	// ErrGoogleDisabled indicates Google sign-in is not configured.
	ErrGoogleDisabled = errors.New("google sign-in not configured")

	// ErrTimeout indicates a storage or auth call exceeded its bound.
	ErrTimeout = errors.New("dependency timeout")

	// ErrDependencyUnavailable wraps any other storage or auth failure.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// Field-level refinements of ErrInvalidInput.
var (
	ErrInvalidMessage       = fmt.Errorf("%w: message must be 10 to 500 characters", ErrInvalidInput)
	ErrInvalidUsername      = fmt.Errorf("%w: username must be 3 to 20 letters, digits or _", ErrInvalidInput)
	ErrInvalidEmail         = fmt.Errorf("%w: malformed email", ErrInvalidInput)
	ErrWeakPassword         = fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	ErrInvalidDisplayName   = fmt.Errorf("%w: display name too long", ErrInvalidInput)
	ErrInvalidPaymentMethod = fmt.Errorf("%w: unknown payment method", ErrInvalidInput)
)

// Refinements of ErrNotFound.
var (
	ErrUserNotFound    = fmt.Errorf("%w: user", ErrNotFound)
	ErrMessageNotFound = fmt.Errorf("%w: message", ErrNotFound)
	// ErrProfileNotFound is an identity that signs in but has no profile row.
	ErrProfileNotFound = fmt.Errorf("%w: profile", ErrNotFound)
)

// Warning is a non-fatal condition reported next to a successful result.
type Warning struct {
	Code    string `json:"code"    example:"profile_save_failed"`
	Message string `json:"message" example:"account created but profile could not be saved"`
}

// WarnProfileSave is returned when an identity was created but its profile
// row could not be written. The identity is marked pending.
var WarnProfileSave = Warning{
	Code:    "profile_save_failed",
	Message: "account created but profile could not be saved",
}

// taxonomy lists the kinds that pass through classify untouched.
var taxonomy = []error{
	ErrInvalidInput, ErrNotFound, ErrQuotaExceeded, ErrForbidden,
	ErrDuplicateUsername, ErrDuplicateEmail, ErrAuthFailure, ErrLinkExpired,
	ErrPaymentNotCompleted, ErrGoogleDisabled, ErrTimeout, ErrDependencyUnavailable,
}

func isKnown(err error) bool {
	for _, k := range taxonomy {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
