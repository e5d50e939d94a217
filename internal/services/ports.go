package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/auth"
	"github.com/tbourn/go-kala-backend/internal/domain"
)

// UserRepo is the user storage contract used by LinkService and UserService.
// Implementations must return gorm.ErrRecordNotFound for missing rows and a
// duplicate error for unique violations.
type UserRepo interface {
	// GetUser fetches a user by id.
	GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)
	// GetUserByUsername fetches a user by exact username.
	GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error)
	// UsernameTaken reports whether another user holds username.
	UsernameTaken(ctx context.Context, db *gorm.DB, username, exceptID string) (bool, error)
	// UpdateUserFields applies a partial update keyed by column name.
	UpdateUserFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error
	// SetUserLink overwrites the user's share link.
	SetUserLink(ctx context.Context, db *gorm.DB, id string, lc domain.LinkConfig) error
}

// ProfileCache caches public profiles by username. A nil-safe
// implementation is expected; cache errors never fail a request.
type ProfileCache interface {
	Get(ctx context.Context, username string, result any) (bool, error)
	Set(ctx context.Context, username string, value any) error
	Invalidate(ctx context.Context, usernames ...string) error
}

// IdentityStore is the authentication collaborator.
type IdentityStore interface {
	SignUp(ctx context.Context, email, password string) (string, error)
	SignIn(ctx context.Context, email, password string) (string, error)
	SignInGoogle(ctx context.Context, g *auth.GoogleIdentity) (id string, created bool, err error)
	MarkPending(ctx context.Context, id string, pending bool) error
	Delete(ctx context.Context, id string) error
	ChangeEmail(ctx context.Context, id, email string) error
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Generate(userID, username string) (string, error)
}

// GoogleVerifier checks Google ID tokens.
type GoogleVerifier interface {
	Verify(ctx context.Context, rawToken string) (*auth.GoogleIdentity, error)
}
