// Auth HTTP handlers.
//
//   - POST /auth/register  (email + password account)
//   - POST /auth/login
//   - POST /auth/google    (Google ID token)
//   - POST /auth/logout    (stateless; the client drops its token)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/http/i18n"
	"github.com/tbourn/go-kala-backend/internal/services"
)

//
// DTOs
//

// RegisterRequest is the sign-up payload.
type RegisterRequest struct {
	Email    string `json:"email"    binding:"required" example:"ana@example.com"`
	Password string `json:"password" binding:"required" example:"segredo123"`
	Username string `json:"username" binding:"required" example:"ana_luanda"`
}

// LoginRequest is the email sign-in payload.
type LoginRequest struct {
	Email    string `json:"email"    binding:"required" example:"ana@example.com"`
	Password string `json:"password" binding:"required" example:"segredo123"`
}

// GoogleLoginRequest carries a Google ID token from the client SDK.
type GoogleLoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

// AuthResponse is returned by register and the login endpoints. Token is
// empty when registration succeeded with a warning.
type AuthResponse struct {
	Success bool              `json:"success" example:"true"`
	User    *domain.User      `json:"user,omitempty"`
	Token   string            `json:"token,omitempty" example:"eyJhbGciOiJIUzI1NiIs..."`
	Warning *services.Warning `json:"warning,omitempty"`
}

func (h *Handlers) authResponse(c *gin.Context, res *services.AuthResult) AuthResponse {
	out := AuthResponse{Success: true, User: res.User, Token: res.Token}
	if res.Warning != nil {
		w := *res.Warning
		w.Message = i18n.Message(i18n.FromRequest(c.Request), w.Code)
		out.Warning = &w
	}
	return out
}

// Register godoc
// @ID          register
// @Summary     Create an account
// @Description Creates the sign-in identity and the profile. If the profile cannot be
// @Description saved the account still exists: the response carries a warning and no token.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "Account"
// @Success     201   {object}  handlers.AuthResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid email, username or weak password"
// @Failure     409   {object}  handlers.ErrorResponse  "Username or email taken"
// @Failure     503   {object}  handlers.ErrorResponse  "Dependency unavailable"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest)
		return
	}
	res, err := h.auth.Register(c.Request.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, h.authResponse(c, res))
}

// Login godoc
// @ID          login
// @Summary     Sign in with email and password
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  handlers.AuthResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse  "Bad credentials"
// @Failure     404   {object}  handlers.ErrorResponse  "Profile missing"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest)
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, h.authResponse(c, res))
}

// LoginWithGoogle godoc
// @ID          loginWithGoogle
// @Summary     Sign in with Google
// @Description Verifies a Google ID token. The first sign-in creates the profile with a
// @Description username derived from the email.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.GoogleLoginRequest  true  "Google ID token"
// @Success     200   {object}  handlers.AuthResponse
// @Failure     401   {object}  handlers.ErrorResponse  "Token rejected"
// @Failure     503   {object}  handlers.ErrorResponse  "Google sign-in not configured"
// @Router      /auth/google [post]
func (h *Handlers) LoginWithGoogle(c *gin.Context) {
	var req GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest)
		return
	}
	res, err := h.auth.LoginWithGoogle(c.Request.Context(), req.IDToken)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, h.authResponse(c, res))
}

// Logout godoc
// @ID          logout
// @Summary     Sign out
// @Description Sessions are stateless JWTs; the client discards its token.
// @Tags        Auth
// @Produce     json
// @Success     200  {object}  handlers.SuccessResponse
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	succeeded(c)
}
