package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-kala-backend/internal/http/i18n"
)

// abortJSON ends the request with the API error envelope, localized for
// the caller. It mirrors handlers.Fail, which middleware cannot import.
func abortJSON(c *gin.Context, status int, code string) {
	rid, _ := c.Get(requestIDKey)
	id := asString(rid)
	if id == "" {
		id = c.Writer.Header().Get(requestIDHeader)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"request_id": id,
		"code":       code,
		"message":    i18n.Message(i18n.FromRequest(c.Request), code),
	})
}
