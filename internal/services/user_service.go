// Package services – UserService
//
// UserService serves profile reads and edits. Public profiles are read
// through the profile cache; any write that changes what a public profile
// shows invalidates it.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/auth"
	"github.com/tbourn/go-kala-backend/internal/domain"
)

// PublicProfile is what anonymous visitors see. It never carries the email
// or the share token.
type PublicProfile struct {
	Username    string `json:"username"    example:"ana_luanda"`
	DisplayName string `json:"displayName" example:"Ana"`
	IsPremium   bool   `json:"isPremium"   example:"false"`
	InboxFull   bool   `json:"inboxFull"   example:"false"`
}

// Me is the signed-in user's own profile.
type Me struct {
	*domain.User
	MessageLimit   int `json:"messageLimit"`
	RemainingQuota int `json:"remainingQuota"`
}

// ProfileUpdate is a partial profile edit; nil fields are left alone.
type ProfileUpdate struct {
	DisplayName *string
	Username    *string
	Email       *string
}

// UserService reads and edits user profiles.
type UserService struct {
	DB         *gorm.DB
	Repo       UserRepo
	Identities IdentityStore
	Cache      ProfileCache

	// FreeLimit caps the inbox of non-premium users.
	FreeLimit int
	// Timeout bounds each storage call.
	Timeout time.Duration
}

// NewUserService returns a UserService with the default free limit.
func NewUserService(db *gorm.DB, r UserRepo, ids IdentityStore, cache ProfileCache) *UserService {
	return &UserService{
		DB:         db,
		Repo:       r,
		Identities: ids,
		Cache:      cache,
		FreeLimit:  domain.DefaultFreeMessageLimit,
		Timeout:    DefaultTimeout,
	}
}

func (s *UserService) limit() int {
	if s.FreeLimit > 0 {
		return s.FreeLimit
	}
	return domain.DefaultFreeMessageLimit
}

// GetPublicProfile returns the visitor view of username.
func (s *UserService) GetPublicProfile(ctx context.Context, username string) (*PublicProfile, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "GetPublicProfile",
		trace.WithAttributes(attribute.String("user.username", username)),
	)
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	if s.Cache != nil {
		var p PublicProfile
		hit, err := s.Cache.Get(ctx, username, &p)
		if err != nil {
			log.Warn().Err(err).Str("username", username).Msg("profile cache read failed")
		}
		if hit {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return &p, nil
		}
	}

	u, err := s.Repo.GetUserByUsername(ctx, s.DB, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, classify(ctx, err)
	}
	p := &PublicProfile{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		IsPremium:   u.IsPremium,
		InboxFull:   u.InboxFull(s.limit()),
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, username, p); err != nil {
			log.Warn().Err(err).Str("username", username).Msg("profile cache write failed")
		}
	}
	return p, nil
}

// GetMe returns the caller's own profile with quota figures.
func (s *UserService) GetMe(ctx context.Context, userID string) (*Me, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "GetMe",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	u, err := s.Repo.GetUser(ctx, s.DB, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, classify(ctx, err)
	}
	return &Me{User: u, MessageLimit: s.limit(), RemainingQuota: u.RemainingQuota(s.limit())}, nil
}

// IsUsernameAvailable reports whether username is well-formed and unused.
func (s *UserService) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	if !domain.ValidUsername(username) {
		return false, ErrInvalidUsername
	}
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	taken, err := s.Repo.UsernameTaken(ctx, s.DB, username, "")
	if err != nil {
		return false, classify(ctx, err)
	}
	return !taken, nil
}

// UpdateProfile applies a partial edit to userID's profile. An email change
// is made on the sign-in identity first and changed back if the profile
// write then fails, so both stay in step.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, up ProfileUpdate) (*domain.User, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "UpdateProfile",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	fields := map[string]any{}
	if up.DisplayName != nil {
		name := strings.TrimSpace(*up.DisplayName)
		if !domain.ValidDisplayName(name) {
			return nil, ErrInvalidDisplayName
		}
		fields["display_name"] = name
	}
	if up.Username != nil {
		if !domain.ValidUsername(*up.Username) {
			return nil, ErrInvalidUsername
		}
		fields["username"] = *up.Username
	}
	var email string
	if up.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*up.Email))
		if !domain.ValidEmail(email) {
			return nil, ErrInvalidEmail
		}
		fields["email"] = email
	}

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	cur, err := s.Repo.GetUser(ctx, s.DB, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, classify(ctx, err)
	}
	if len(fields) == 0 {
		return cur, nil
	}

	if up.Username != nil && *up.Username != cur.Username {
		taken, err := s.Repo.UsernameTaken(ctx, s.DB, *up.Username, userID)
		if err != nil {
			return nil, classify(ctx, err)
		}
		if taken {
			return nil, ErrDuplicateUsername
		}
	}
	emailMoved := false
	if up.Email != nil && email != strings.ToLower(cur.Email) && s.Identities != nil {
		if err := s.Identities.ChangeEmail(ctx, userID, email); err != nil {
			if errors.Is(err, auth.ErrEmailTaken) {
				return nil, ErrDuplicateEmail
			}
			return nil, classify(ctx, err)
		}
		emailMoved = true
	}

	if err := s.Repo.UpdateUserFields(ctx, s.DB, userID, fields); err != nil {
		if emailMoved {
			s.restoreEmail(ctx, userID, cur.Email)
		}
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrUserNotFound
		case isDuplicate(err) && up.Username != nil:
			// Lost the race on the unique index.
			return nil, ErrDuplicateUsername
		case isDuplicate(err):
			return nil, ErrDuplicateEmail
		}
		return nil, classify(ctx, err)
	}

	s.invalidate(ctx, cur.Username, up.Username)

	u, err := s.Repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return u, nil
}

// restoreEmail puts the identity email back after a failed profile write.
// It runs on its own deadline since ctx may already be spent.
func (s *UserService) restoreEmail(ctx context.Context, userID, email string) {
	rctx, cancel := withTimeout(context.WithoutCancel(ctx), s.Timeout)
	defer cancel()
	if err := s.Identities.ChangeEmail(rctx, userID, email); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("identity email restore failed")
	}
}

func (s *UserService) invalidate(ctx context.Context, old string, renamed *string) {
	if s.Cache == nil {
		return
	}
	names := []string{old}
	if renamed != nil && *renamed != old {
		names = append(names, *renamed)
	}
	if err := s.Cache.Invalidate(ctx, names...); err != nil {
		log.Warn().Err(err).Strs("usernames", names).Msg("profile cache invalidate failed")
	}
}
