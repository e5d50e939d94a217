// Package handlers provides the HTTP handlers of the KALA API.
//
// Handlers are transport-thin: they bind and shape input, take the caller
// identity from the auth middleware, delegate to the application services,
// and translate results and service errors into the response envelope.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/http/middleware"
	"github.com/tbourn/go-kala-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// AuthService registers and signs users in.
type AuthService interface {
	Register(ctx context.Context, email, password, username string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*services.AuthResult, error)
}

// MessageService admits anonymous messages and manages inboxes.
type MessageService interface {
	Send(ctx context.Context, username, text string, opts services.SendOptions) (*services.SendResult, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Message, int64, error)
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
	MarkAsRead(ctx context.Context, userID, messageID string) error
	Delete(ctx context.Context, userID, messageID string) error
	CountUnread(ctx context.Context, userID string) (int64, error)
}

// LinkService manages share links.
type LinkService interface {
	Generate(ctx context.Context, userID string) (*services.LinkInfo, error)
	Status(ctx context.Context, userID string) (*services.LinkInfo, error)
	Verify(ctx context.Context, username, token string) error
}

// UserService reads and edits profiles.
type UserService interface {
	GetPublicProfile(ctx context.Context, username string) (*services.PublicProfile, error)
	GetMe(ctx context.Context, userID string) (*services.Me, error)
	IsUsernameAvailable(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, userID string, up services.ProfileUpdate) (*domain.User, error)
}

// PaymentService runs the premium purchase flow.
type PaymentService interface {
	Create(ctx context.Context, userID, method string) (*services.Checkout, error)
	Callback(ctx context.Context, in services.CallbackInput) (*services.CallbackResult, error)
	Status(ctx context.Context, userID string) (*services.SubscriptionStatus, error)
	Cancel(ctx context.Context, userID string) error
}

//
// Handler wiring
//

// Deps are the collaborators of Handlers.
type Deps struct {
	Auth     AuthService
	Messages MessageService
	Links    LinkService
	Users    UserService
	Payments PaymentService

	// WebhookSecret signs payment callbacks. Empty accepts unsigned
	// callbacks and logs each one as unverified.
	WebhookSecret string
}

// Handlers groups the API endpoints.
type Handlers struct {
	auth     AuthService
	msgs     MessageService
	links    LinkService
	users    UserService
	payments PaymentService

	webhookSecret []byte
}

// New constructs Handlers bound to the given services.
func New(d Deps) *Handlers {
	return &Handlers{
		auth:          d.Auth,
		msgs:          d.Messages,
		links:         d.Links,
		users:         d.Users,
		payments:      d.Payments,
		webhookSecret: []byte(d.WebhookSecret),
	}
}

// userID is the authenticated caller, set by middleware.RequireAuth.
func userID(c *gin.Context) string { return middleware.UserID(c) }

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"       example:"1"`
	PageSize   int   `json:"pageSize"   example:"20"`
	Total      int64 `json:"total"      example:"42"`
	TotalPages int   `json:"totalPages" example:"3"`
	HasNext    bool  `json:"hasNext"    example:"true"`
}
