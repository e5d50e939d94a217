// Share link HTTP handlers.
//
//   - POST /links             (generate; replaces the previous link)
//   - GET  /links/me          (active flag and time left)
//   - GET  /links/{username}  (visitor check of ?t=<token>)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-kala-backend/internal/services"
)

// LinkResponse is the owner's view of their link.
type LinkResponse struct {
	Success bool               `json:"success" example:"true"`
	Link    *services.LinkInfo `json:"link"`
}

// LinkCheckResponse confirms a visitor's token.
type LinkCheckResponse struct {
	Success bool `json:"success" example:"true"`
	Valid   bool `json:"valid"   example:"true"`
}

// GenerateLink godoc
// @ID          generateLink
// @Summary     Generate a share link
// @Description Issues a new token valid for 48 hours. Any previous token stops working.
// @Tags        Links
// @Produce     json
// @Security    BearerAuth
// @Success     201  {object}  handlers.LinkResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /links [post]
func (h *Handlers) GenerateLink(c *gin.Context) {
	info, err := h.links.Generate(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, LinkResponse{Success: true, Link: info})
}

// LinkStatus godoc
// @ID          linkStatus
// @Summary     Own link status
// @Tags        Links
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.LinkResponse
// @Router      /links/me [get]
func (h *Handlers) LinkStatus(c *gin.Context) {
	info, err := h.links.Status(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LinkResponse{Success: true, Link: info})
}

// VerifyLink godoc
// @ID          verifyLink
// @Summary     Check a share link
// @Description Used by the send page before showing the message form.
// @Tags        Links
// @Produce     json
// @Param       username  path   string  true  "Recipient"
// @Param       t         query  string  true  "Share token"
// @Success     200  {object}  handlers.LinkCheckResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Token missing"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown username"
// @Failure     410  {object}  handlers.ErrorResponse  "Link invalid or expired"
// @Router      /links/{username} [get]
func (h *Handlers) VerifyLink(c *gin.Context) {
	token := strings.TrimSpace(c.Query("t"))
	if token == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest)
		return
	}
	if err := h.links.Verify(c.Request.Context(), c.Param("username"), token); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LinkCheckResponse{Success: true, Valid: true})
}
