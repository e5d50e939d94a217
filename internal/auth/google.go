package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

// ErrGoogleDisabled is returned when no Google client id is configured.
var ErrGoogleDisabled = errors.New("google sign-in disabled")

// GoogleIdentity is what KALA keeps from a verified Google ID token.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// validateIDToken is swapped in tests.
var validateIDToken = idtoken.Validate

// GoogleVerifier checks Google ID tokens against the configured client id.
type GoogleVerifier struct {
	ClientID string
}

// NewGoogleVerifier returns a verifier for clientID. An empty id yields a
// verifier that rejects everything with ErrGoogleDisabled.
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{ClientID: strings.TrimSpace(clientID)}
}

// Verify validates rawToken and extracts the account. Unverified emails
// are refused.
func (g *GoogleVerifier) Verify(ctx context.Context, rawToken string) (*GoogleIdentity, error) {
	const op = "auth.GoogleVerify"
	if g == nil || g.ClientID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrGoogleDisabled)
	}
	payload, err := validateIDToken(ctx, rawToken, g.ClientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	if payload.Subject == "" || email == "" || !verified {
		return nil, fmt.Errorf("%s: %w: unverified email", op, ErrInvalidToken)
	}
	name, _ := payload.Claims["name"].(string)
	return &GoogleIdentity{
		Subject: payload.Subject,
		Email:   strings.ToLower(email),
		Name:    name,
	}, nil
}
