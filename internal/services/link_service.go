// Package services – LinkService
//
// LinkService issues and checks the single share token attached to each
// user. Generating a link always overwrites the previous one, so an older
// token stops working the moment a new one exists, even if it has not
// expired yet. Concurrent generations for the same user resolve as last
// write wins.
package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/observability"
)

// LinkInfo is the owner's view of their share link.
type LinkInfo struct {
	Token            string     `json:"token,omitempty"`
	URL              string     `json:"url,omitempty"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	Active           bool       `json:"active"`
	RemainingSeconds int64      `json:"remainingSeconds"`
}

// LinkService manages share links.
type LinkService struct {
	DB    *gorm.DB
	Repo  UserRepo
	Cache ProfileCache

	// TTL is the link lifetime, fixed at generation.
	TTL time.Duration
	// BaseURL prefixes the /m/<username>?t=<token> share path.
	BaseURL string
	// Timeout bounds each storage call.
	Timeout time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewLinkService returns a LinkService with the default 48h TTL.
func NewLinkService(db *gorm.DB, r UserRepo, cache ProfileCache, baseURL string) *LinkService {
	return &LinkService{
		DB:      db,
		Repo:    r,
		Cache:   cache,
		TTL:     domain.DefaultLinkTTL,
		BaseURL: baseURL,
		Timeout: DefaultTimeout,
	}
}

// Generate creates a fresh token for userID and replaces whatever link the
// user had before.
func (s *LinkService) Generate(ctx context.Context, userID string) (*LinkInfo, error) {
	ctx, span := otel.Tracer("services/LinkService").Start(ctx, "Generate",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	u, err := s.Repo.GetUser(ctx, s.DB, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, classify(ctx, err)
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = domain.DefaultLinkTTL
	}
	now := clock(s.Now)
	lc := domain.NewLinkConfig(uuid.NewString(), now, ttl)
	if err := s.Repo.SetUserLink(ctx, s.DB, u.ID, lc); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, classify(ctx, err)
	}
	u.SetLink(&lc)

	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx, u.Username); err != nil {
			log.Warn().Err(err).Str("username", u.Username).Msg("profile cache invalidate failed")
		}
	}
	observability.LinkGenerated()
	return s.info(u, now), nil
}

// Status returns the owner's current link without requiring the token.
func (s *LinkService) Status(ctx context.Context, userID string) (*LinkInfo, error) {
	ctx, span := otel.Tracer("services/LinkService").Start(ctx, "Status",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	u, err := s.Repo.GetUser(ctx, s.DB, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, classify(ctx, err)
	}
	return s.info(u, clock(s.Now)), nil
}

// Remaining returns how long the user's link stays valid, or zero.
func (s *LinkService) Remaining(ctx context.Context, userID string) (time.Duration, error) {
	info, err := s.Status(ctx, userID)
	if err != nil {
		return 0, err
	}
	return time.Duration(info.RemainingSeconds) * time.Second, nil
}

// Verify checks a visitor's token against username's current link.
// It returns ErrUserNotFound or ErrLinkExpired, nil when the link is usable.
func (s *LinkService) Verify(ctx context.Context, username, token string) error {
	ctx, span := otel.Tracer("services/LinkService").Start(ctx, "Verify",
		trace.WithAttributes(attribute.String("user.username", username)),
	)
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	u, err := s.Repo.GetUserByUsername(ctx, s.DB, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return classify(ctx, err)
	}
	if !u.HasActiveLink(clock(s.Now), &token) {
		return ErrLinkExpired
	}
	return nil
}

// ShareURL builds the public send-page URL for a token.
func (s *LinkService) ShareURL(username, token string) string {
	base := strings.TrimRight(s.BaseURL, "/")
	return base + "/m/" + url.PathEscape(username) + "?t=" + url.QueryEscape(token)
}

func (s *LinkService) info(u *domain.User, now time.Time) *LinkInfo {
	lc := u.Link()
	if lc == nil {
		return &LinkInfo{}
	}
	created, expires := lc.CreatedAt, lc.ExpiresAt
	return &LinkInfo{
		Token:            lc.Token,
		URL:              s.ShareURL(u.Username, lc.Token),
		CreatedAt:        &created,
		ExpiresAt:        &expires,
		Active:           u.HasActiveLink(now, nil),
		RemainingSeconds: int64(u.LinkTimeRemaining(now) / time.Second),
	}
}
