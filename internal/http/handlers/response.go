// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by all endpoints. Every
// body carries "success"; errors add a stable code, the request id and a
// message localized from the caller's Accept-Language (Portuguese default).
//
// Example error response:
//
//	HTTP/1.1 410 Gone
//	{
//	  "success": false,
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "link_expired",
//	  "message": "Este link é inválido ou expirou."
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-kala-backend/internal/http/i18n"
	"github.com/tbourn/go-kala-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	Success bool `json:"success" example:"false"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Localized, safe to show to users
	Message string `json:"message" example:"Não encontrado."`
}

// SuccessResponse is the body of operations with nothing else to return.
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

// fail aborts with the error envelope. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Msg("api error")
	}
	abort(c, status, code)
}

// Fail is the exported variant of fail for the router fallbacks.
func Fail(c *gin.Context, status int, code string) { fail(c, status, code) }

// failErr maps a service error onto the envelope. The cause of a 5xx is
// logged and never leaves the server.
func failErr(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Err(err).
			Int("status", status).
			Str("code", code).
			Msg("service failure")
	}
	abort(c, status, code)
}

func abort(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   i18n.Message(i18n.FromRequest(c.Request), code),
	})
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func succeeded(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
