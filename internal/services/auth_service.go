// Package services – AuthService
//
// Registration is a two-step write: the sign-in identity is created first,
// then the user profile that shares its id. When the profile write fails
// (after one retry) the identity is marked pending and the caller gets a
// successful result with WarnProfileSave instead of a silent success. A
// username taken between the availability check and the insert removes the
// identity again and reports ErrDuplicateUsername.
package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/auth"
	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/repo"
)

// AuthResult is a signed-in (or just registered) user.
type AuthResult struct {
	User    *domain.User
	Token   string
	Warning *Warning
}

// AuthService handles registration and sign-in.
type AuthService struct {
	DB         *gorm.DB
	Identities IdentityStore
	Google     GoogleVerifier
	Tokens     TokenIssuer

	// SaveProfile writes a new user row. Defaults to repo.CreateUser.
	SaveProfile func(ctx context.Context, db *gorm.DB, u *domain.User) error

	// Timeout bounds each operation's storage and auth calls.
	Timeout time.Duration
}

// NewAuthService wires an AuthService. google may be nil when Google
// sign-in is not configured.
func NewAuthService(db *gorm.DB, ids IdentityStore, google GoogleVerifier, tokens TokenIssuer) *AuthService {
	return &AuthService{
		DB:          db,
		Identities:  ids,
		Google:      google,
		Tokens:      tokens,
		SaveProfile: repo.CreateUser,
		Timeout:     DefaultTimeout,
	}
}

// Register creates an identity and its profile.
func (s *AuthService) Register(ctx context.Context, email, password, username string) (*AuthResult, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Register",
		trace.WithAttributes(attribute.String("user.username", username)),
	)
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	switch {
	case !domain.ValidEmail(email):
		return nil, ErrInvalidEmail
	case !domain.ValidUsername(username):
		return nil, ErrInvalidUsername
	case !domain.ValidPassword(password):
		return nil, ErrWeakPassword
	}

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	taken, err := repo.UsernameTaken(ctx, s.DB, username, "")
	if err != nil {
		return nil, classify(ctx, err)
	}
	if taken {
		return nil, ErrDuplicateUsername
	}

	id, err := s.Identities.SignUp(ctx, email, password)
	if errors.Is(err, auth.ErrEmailTaken) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, classify(ctx, err)
	}

	u := &domain.User{ID: id, Email: email, Username: username, DisplayName: username}
	if err := s.saveProfile(ctx, u); err != nil {
		if isDuplicate(err) {
			// Lost a race for the username; the identity must not keep the email.
			if derr := s.Identities.Delete(ctx, id); derr != nil {
				log.Error().Err(derr).Str("user_id", id).Msg("identity rollback failed")
				if perr := s.Identities.MarkPending(ctx, id, true); perr != nil {
					log.Error().Err(perr).Str("user_id", id).Msg("mark identity pending failed")
				}
			}
			return nil, ErrDuplicateUsername
		}
		log.Error().Err(err).Str("user_id", id).Msg("profile save failed after identity creation")
		if perr := s.Identities.MarkPending(ctx, id, true); perr != nil {
			log.Error().Err(perr).Str("user_id", id).Msg("mark identity pending failed")
		}
		w := WarnProfileSave
		return &AuthResult{User: u, Warning: &w}, nil
	}

	tok, err := s.Tokens.Generate(u.ID, u.Username)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return &AuthResult{User: u, Token: tok}, nil
}

// saveProfile writes u, retrying once on failure. A unique-index hit is
// not retried.
func (s *AuthService) saveProfile(ctx context.Context, u *domain.User) error {
	save := s.SaveProfile
	if save == nil {
		save = repo.CreateUser
	}
	err := save(ctx, s.DB, u)
	if err == nil || isDuplicate(err) || ctx.Err() != nil {
		return err
	}
	return save(ctx, s.DB, u)
}

// Login checks email/password and loads the matching profile.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Login")
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	id, err := s.Identities.SignIn(ctx, strings.TrimSpace(email), password)
	if errors.Is(err, auth.ErrBadCredentials) {
		return nil, ErrAuthFailure
	}
	if err != nil {
		return nil, classify(ctx, err)
	}
	return s.session(ctx, id)
}

// LoginWithGoogle verifies a Google ID token and signs the user in,
// creating their profile on first use.
func (s *AuthService) LoginWithGoogle(ctx context.Context, idToken string) (*AuthResult, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "LoginWithGoogle")
	defer span.End()

	if s.Google == nil {
		return nil, ErrGoogleDisabled
	}

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	g, err := s.Google.Verify(ctx, idToken)
	switch {
	case errors.Is(err, auth.ErrGoogleDisabled):
		return nil, ErrGoogleDisabled
	case err != nil && ctx.Err() != nil:
		return nil, classify(ctx, err)
	case err != nil:
		return nil, ErrAuthFailure
	}

	id, created, err := s.Identities.SignInGoogle(ctx, g)
	if err != nil {
		return nil, classify(ctx, err)
	}
	span.SetAttributes(attribute.Bool("identity.created", created))

	res, err := s.session(ctx, id)
	if !errors.Is(err, ErrProfileNotFound) {
		return res, err
	}

	// First Google sign-in, or an earlier profile write that never landed.
	username, err := s.deriveUsername(ctx, g.Email)
	if err != nil {
		return nil, classify(ctx, err)
	}
	u := &domain.User{ID: id, Email: strings.ToLower(g.Email), Username: username, DisplayName: strings.TrimSpace(g.Name)}
	if u.DisplayName == "" {
		u.DisplayName = username
	}
	if err := s.saveProfile(ctx, u); err != nil {
		if perr := s.Identities.MarkPending(ctx, id, true); perr != nil {
			log.Error().Err(perr).Str("user_id", id).Msg("mark identity pending failed")
		}
		return nil, classify(ctx, err)
	}
	if !created {
		if err := s.Identities.MarkPending(ctx, id, false); err != nil {
			log.Warn().Err(err).Str("user_id", id).Msg("clear identity pending failed")
		}
	}
	tok, err := s.Tokens.Generate(u.ID, u.Username)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return &AuthResult{User: u, Token: tok}, nil
}

// session loads the profile for an identity id and mints a token.
func (s *AuthService) session(ctx context.Context, id string) (*AuthResult, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, classify(ctx, err)
	}
	tok, err := s.Tokens.Generate(u.ID, u.Username)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return &AuthResult{User: u, Token: tok}, nil
}

// deriveUsername turns an email local part into a free username, adding a
// numeric suffix on collision.
func (s *AuthService) deriveUsername(ctx context.Context, email string) (string, error) {
	base := usernameBase(email)
	for n := 1; n < 100; n++ {
		cand := base
		if n > 1 {
			suffix := strconv.Itoa(n)
			if len(cand)+len(suffix) > domain.MaxUsernameLen {
				cand = cand[:domain.MaxUsernameLen-len(suffix)]
			}
			cand += suffix
		}
		taken, err := repo.UsernameTaken(ctx, s.DB, cand, "")
		if err != nil {
			return "", err
		}
		if !taken {
			return cand, nil
		}
	}
	return "", errors.New("no free username for " + base)
}

// usernameBase keeps [A-Za-z0-9_] from the local part, padded to the
// minimum length and cut to the maximum.
func usernameBase(email string) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range local {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '+':
			b.WriteByte('_')
		}
	}
	out := b.String()
	for len(out) < domain.MinUsernameLen {
		out += "_"
	}
	if len(out) > domain.MaxUsernameLen {
		out = out[:domain.MaxUsernameLen]
	}
	return out
}
