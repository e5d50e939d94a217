package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/repo"
)

// ErrEmailTaken is returned when an identity already uses the email.
var ErrEmailTaken = errors.New("email already registered")

// Local is the identity store for email/password and Google accounts,
// backed by the identities table.
type Local struct {
	DB *gorm.DB
}

// NewLocal returns an identity store over db.
func NewLocal(db *gorm.DB) *Local { return &Local{DB: db} }

// SignUp creates a password identity and returns its id, which the caller
// reuses as the profile id.
func (l *Local) SignUp(ctx context.Context, email, password string) (string, error) {
	const op = "auth.SignUp"
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	id := &domain.Identity{ID: uuid.NewString(), Email: email, PasswordHash: hash}
	if err := repo.CreateIdentity(ctx, l.DB, id); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id.ID, nil
}

// SignIn checks an email/password pair and returns the identity id.
// Unknown emails and wrong passwords both yield ErrBadCredentials.
func (l *Local) SignIn(ctx context.Context, email, password string) (string, error) {
	const op = "auth.SignIn"
	id, err := repo.GetIdentityByEmail(ctx, l.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, ErrBadCredentials)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := ComparePassword(id.PasswordHash, password); err != nil {
		return "", err
	}
	return id.ID, nil
}

// SignInGoogle returns the identity bound to g, linking it to an existing
// email identity or creating a new one. created reports whether the
// identity did not exist before.
func (l *Local) SignInGoogle(ctx context.Context, g *GoogleIdentity) (id string, created bool, err error) {
	const op = "auth.SignInGoogle"
	if found, err := repo.GetIdentityByGoogleSubject(ctx, l.DB, g.Subject); err == nil {
		return found.ID, false, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}

	if byEmail, err := repo.GetIdentityByEmail(ctx, l.DB, g.Email); err == nil {
		if err := repo.UpdateIdentity(ctx, l.DB, byEmail.ID, map[string]any{"google_subject": g.Subject}); err != nil {
			return "", false, fmt.Errorf("%s: %w", op, err)
		}
		return byEmail.ID, false, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}

	sub := g.Subject
	ident := &domain.Identity{ID: uuid.NewString(), Email: g.Email, GoogleSubject: &sub}
	if err := repo.CreateIdentity(ctx, l.DB, ident); err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return ident.ID, true, nil
}

// MarkPending flags an identity whose profile write failed.
func (l *Local) MarkPending(ctx context.Context, id string, pending bool) error {
	return repo.SetIdentityPending(ctx, l.DB, id, pending)
}

// Delete removes an identity whose profile could not be created.
func (l *Local) Delete(ctx context.Context, id string) error {
	return repo.DeleteIdentity(ctx, l.DB, id)
}

// ChangeEmail keeps the identity email in step with the profile.
func (l *Local) ChangeEmail(ctx context.Context, id, email string) error {
	const op = "auth.ChangeEmail"
	email = strings.ToLower(strings.TrimSpace(email))
	err := repo.UpdateIdentity(ctx, l.DB, id, map[string]any{"email": email})
	if errors.Is(err, repo.ErrDuplicate) {
		return fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	return err
}
