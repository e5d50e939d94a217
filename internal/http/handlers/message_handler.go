// Message HTTP handlers.
//
//   - POST   /messages/send                 (anonymous; admission control)
//   - GET    /messages/list/{userId}        (own inbox, newest first, ETag)
//   - POST   /messages/read/{messageId}     (owner only)
//   - DELETE /messages/{messageId}          (owner only)
//   - GET    /messages/unread/count
//
// Idempotency:
// A sender may supply an Idempotency-Key header. A retry with the same key
// for the same recipient returns the original message id with
// `Idempotency-Replayed: true` and does not count against the quota again.
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/http/middleware"
	"github.com/tbourn/go-kala-backend/internal/services"
	"github.com/tbourn/go-kala-backend/internal/utils"
)

const (
	defaultInboxPageSize = 20
	maxInboxPageSize     = 50
)

//
// DTOs
//

// SendMessageRequest is an anonymous message for username's inbox.
type SendMessageRequest struct {
	Username string `json:"username" binding:"required" example:"ana_luanda"`
	// Text is trimmed and must be 10 to 500 characters.
	Text string `json:"text" binding:"required" example:"Gostei muito da tua apresentação de ontem!"`
	// Token is the share-link token from the URL (?t=). When present it
	// must be the recipient's active token.
	Token *string `json:"token,omitempty" example:"5f0c6a3e-8d0b-4f4e-9b7e-2d5b1f1c9a77"`
}

// SendMessageResponse carries the id of the stored message.
type SendMessageResponse struct {
	Success   bool   `json:"success"   example:"true"`
	MessageID string `json:"messageId" example:"9b2e7c1a-4f6d-4c3b-8a9e-0d1f2e3c4b5a"`
}

// ListMessagesResponse is one inbox page.
type ListMessagesResponse struct {
	Success    bool             `json:"success" example:"true"`
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// UnreadCountResponse is the number of unread messages.
type UnreadCountResponse struct {
	Success bool  `json:"success" example:"true"`
	Count   int64 `json:"count"   example:"3"`
}

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send an anonymous message
// @Description Validates the text, checks the recipient and the free-tier quota (80
// @Description messages), stores the message and increments the recipient's counter
// @Description atomically. Retries are safe with an Idempotency-Key.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                       false  "Deduplicates retries for the same recipient"
// @Param       body             body    handlers.SendMessageRequest  true   "Message"
// @Success     201  {object}  handlers.SendMessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid text"
// @Failure     403  {object}  handlers.ErrorResponse  "Inbox full"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown username"
// @Failure     410  {object}  handlers.ErrorResponse  "Link expired"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     503  {object}  handlers.ErrorResponse  "Dependency unavailable"
// @Failure     504  {object}  handlers.ErrorResponse  "Dependency timeout"
// @Router      /messages/send [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest)
		return
	}

	opts := services.SendOptions{LinkToken: req.Token}
	if opts.LinkToken == nil {
		if t, found := c.GetQuery("t"); found {
			opts.LinkToken = &t
		}
	}
	opts.IdempotencyKey, _ = middleware.GetIdempotencyKey(c)

	res, err := h.msgs.Send(c.Request.Context(), strings.TrimSpace(req.Username), req.Text, opts)
	if err != nil {
		failErr(c, err)
		return
	}
	if res.Replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
	}
	ok(c, http.StatusCreated, SendMessageResponse{Success: true, MessageID: res.MessageID})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List own inbox
// @Description Newest first. Supports If-None-Match with a weak ETag over count and last change.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       userId     path   string  true   "Own user id"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(50) default(20)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Success     304  "Not modified"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Not your inbox"
// @Router      /messages/list/{userId} [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	if c.Param("userId") != uid {
		fail(c, http.StatusForbidden, ErrCodeForbidden)
		return
	}

	// ETag pre-check (best effort).
	if count, last, err := h.msgs.Stats(ctx, uid); err == nil {
		var ts int64
		if last != nil {
			ts = last.UnixNano()
		}
		etag := fmt.Sprintf(`W/"inbox:%s:%d:%d"`, uid, count, ts)
		c.Header("ETag", etag)
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	page, pageSize := utils.PageParams(c.Query("page"), c.Query("page_size"), defaultInboxPageSize, maxInboxPageSize)
	items, total, err := h.msgs.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListMessagesResponse{
		Success:  true,
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// MarkAsRead godoc
// @ID          markAsRead
// @Summary     Mark a message as read
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       messageId  path  string  true  "Message id"
// @Success     200  {object}  handlers.SuccessResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown message"
// @Router      /messages/read/{messageId} [post]
func (h *Handlers) MarkAsRead(c *gin.Context) {
	if err := h.msgs.MarkAsRead(c.Request.Context(), userID(c), c.Param("messageId")); err != nil {
		failErr(c, err)
		return
	}
	succeeded(c)
}

// DeleteMessage godoc
// @ID          deleteMessage
// @Summary     Delete a message
// @Description Deleting does not give quota back.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       messageId  path  string  true  "Message id"
// @Success     200  {object}  handlers.SuccessResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown message"
// @Router      /messages/{messageId} [delete]
func (h *Handlers) DeleteMessage(c *gin.Context) {
	if err := h.msgs.Delete(c.Request.Context(), userID(c), c.Param("messageId")); err != nil {
		failErr(c, err)
		return
	}
	succeeded(c)
}

// CountUnread godoc
// @ID          countUnread
// @Summary     Count unread messages
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.UnreadCountResponse
// @Router      /messages/unread/count [get]
func (h *Handlers) CountUnread(c *gin.Context) {
	n, err := h.msgs.CountUnread(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, UnreadCountResponse{Success: true, Count: n})
}
