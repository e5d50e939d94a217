// Package handlers defines the stable error codes returned by the API and
// the mapping from service errors to (HTTP status, code).
//
// Codes are lowercase snake_case. Clients branch on the code; the message
// next to it is localized for display (see internal/http/i18n).
//
//	{
//	  "success": false,
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "inbox_full",
//	  "message": "A caixa de mensagens deste utilizador está cheia."
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/tbourn/go-kala-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidMessage       = "invalid_message"
	ErrCodeInvalidUsername      = "invalid_username"
	ErrCodeInvalidEmail         = "invalid_email"
	ErrCodeWeakPassword         = "weak_password"
	ErrCodeInvalidDisplayName   = "invalid_display_name"
	ErrCodeInvalidPaymentMethod = "invalid_payment_method"
	ErrCodeUserNotFound         = "user_not_found"
	ErrCodeMessageNotFound      = "message_not_found"
	ErrCodeProfileNotFound      = "profile_not_found"
	ErrCodeInboxFull            = "inbox_full"
	ErrCodeLinkExpired          = "link_expired"
	ErrCodeDuplicateUsername    = "duplicate_username"
	ErrCodeDuplicateEmail       = "duplicate_email"
	ErrCodeAuthFailed           = "auth_failed"
	ErrCodePaymentNotCompleted  = "payment_not_completed"
	ErrCodeGoogleDisabled       = "google_disabled"
	ErrCodeInvalidSignature     = "invalid_signature"
)

// errorMapping pairs a service error with its response. Order matters:
// refinements come before the kind they wrap.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrInvalidMessage, http.StatusBadRequest, ErrCodeInvalidMessage},
	{services.ErrInvalidUsername, http.StatusBadRequest, ErrCodeInvalidUsername},
	{services.ErrInvalidEmail, http.StatusBadRequest, ErrCodeInvalidEmail},
	{services.ErrWeakPassword, http.StatusBadRequest, ErrCodeWeakPassword},
	{services.ErrInvalidDisplayName, http.StatusBadRequest, ErrCodeInvalidDisplayName},
	{services.ErrInvalidPaymentMethod, http.StatusBadRequest, ErrCodeInvalidPaymentMethod},
	{services.ErrInvalidInput, http.StatusBadRequest, ErrCodeBadRequest},

	{services.ErrUserNotFound, http.StatusNotFound, ErrCodeUserNotFound},
	{services.ErrMessageNotFound, http.StatusNotFound, ErrCodeMessageNotFound},
	{services.ErrProfileNotFound, http.StatusNotFound, ErrCodeProfileNotFound},
	{services.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},

	{services.ErrQuotaExceeded, http.StatusForbidden, ErrCodeInboxFull},
	{services.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
	{services.ErrDuplicateUsername, http.StatusConflict, ErrCodeDuplicateUsername},
	{services.ErrDuplicateEmail, http.StatusConflict, ErrCodeDuplicateEmail},
	{services.ErrAuthFailure, http.StatusUnauthorized, ErrCodeAuthFailed},
	{services.ErrLinkExpired, http.StatusGone, ErrCodeLinkExpired},
	{services.ErrPaymentNotCompleted, http.StatusBadRequest, ErrCodePaymentNotCompleted},
	{services.ErrGoogleDisabled, http.StatusServiceUnavailable, ErrCodeGoogleDisabled},

	// Dependency failures share the generic code; only the status differs.
	{services.ErrTimeout, http.StatusGatewayTimeout, ErrCodeInternal},
	{services.ErrDependencyUnavailable, http.StatusServiceUnavailable, ErrCodeInternal},
}

// statusFor maps a service error to its HTTP status and code. Unknown
// errors are 500 internal_error.
func statusFor(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, ErrCodeInternal
}
