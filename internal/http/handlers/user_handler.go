// User HTTP handlers.
//
//   - GET /users/me                     (own profile with quota figures)
//   - PUT /users/profile                (display name, username, email)
//   - GET /users/available/{username}
//   - GET /users/{username}             (public profile)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/services"
)

//
// DTOs
//

// UpdateProfileRequest is a partial profile edit. Omitted fields are left
// unchanged. UserID is optional and, when sent, must be the caller.
type UpdateProfileRequest struct {
	UserID      string  `json:"userId,omitempty"`
	DisplayName *string `json:"displayName,omitempty" example:"Ana"`
	Username    *string `json:"username,omitempty"    example:"ana_lda"`
	Email       *string `json:"email,omitempty"       example:"ana@example.com"`
}

// MeResponse is the caller's own profile.
type MeResponse struct {
	Success bool         `json:"success" example:"true"`
	User    *services.Me `json:"user"`
}

// ProfileResponse is the updated profile.
type ProfileResponse struct {
	Success bool         `json:"success" example:"true"`
	User    *domain.User `json:"user"`
}

// PublicProfileResponse is what visitors of a share link see.
type PublicProfileResponse struct {
	Success bool                    `json:"success" example:"true"`
	Profile *services.PublicProfile `json:"profile"`
}

// AvailabilityResponse reports whether a username can be claimed.
type AvailabilityResponse struct {
	Success   bool `json:"success"   example:"true"`
	Available bool `json:"available" example:"true"`
}

// GetMe godoc
// @ID          getMe
// @Summary     Own profile
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.MeResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Profile missing"
// @Router      /users/me [get]
func (h *Handlers) GetMe(c *gin.Context) {
	me, err := h.users.GetMe(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MeResponse{Success: true, User: me})
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Edit own profile
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.UpdateProfileRequest  true  "Fields to change"
// @Success     200   {object}  handlers.ProfileResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid field"
// @Failure     403   {object}  handlers.ErrorResponse  "Editing someone else"
// @Failure     409   {object}  handlers.ErrorResponse  "Username or email taken"
// @Router      /users/profile [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest)
		return
	}
	uid := userID(c)
	if req.UserID != "" && req.UserID != uid {
		fail(c, http.StatusForbidden, ErrCodeForbidden)
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), uid, services.ProfileUpdate{
		DisplayName: req.DisplayName,
		Username:    req.Username,
		Email:       req.Email,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ProfileResponse{Success: true, User: u})
}

// UsernameAvailable godoc
// @ID          usernameAvailable
// @Summary     Check username availability
// @Tags        Users
// @Produce     json
// @Param       username  path  string  true  "Candidate username"
// @Success     200  {object}  handlers.AvailabilityResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed username"
// @Router      /users/available/{username} [get]
func (h *Handlers) UsernameAvailable(c *gin.Context) {
	free, err := h.users.IsUsernameAvailable(c.Request.Context(), c.Param("username"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AvailabilityResponse{Success: true, Available: free})
}

// GetPublicProfile godoc
// @ID          getPublicProfile
// @Summary     Public profile
// @Description Never includes the email or the share token.
// @Tags        Users
// @Produce     json
// @Param       username  path  string  true  "Username"
// @Success     200  {object}  handlers.PublicProfileResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/{username} [get]
func (h *Handlers) GetPublicProfile(c *gin.Context) {
	p, err := h.users.GetPublicProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PublicProfileResponse{Success: true, Profile: p})
}
