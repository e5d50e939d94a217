// Package domain defines the KALA entities (users, messages, subscriptions,
// payments and sign-in identities) together with the pure rules attached to
// them: field validators, share-link validity and the free-tier quota. The
// types are mapped with GORM and shared by the repository and service layers.
package domain

import (
	"crypto/subtle"
	"time"
)

const (
	// DefaultFreeMessageLimit is the number of messages a free account may receive.
	DefaultFreeMessageLimit = 80
	// DefaultLinkTTL is the lifetime of a share link, fixed at generation time.
	DefaultLinkTTL = 48 * time.Hour
)

// User is an account that owns a public inbox.
//
// The share link is stored flattened in three nullable columns; use Link,
// SetLink and HasActiveLink instead of touching them directly. MessageCount
// counts every message ever admitted and is never decremented, not even when
// a message is deleted.
type User struct {
	ID           string `json:"id"           gorm:"type:char(36);primaryKey"`
	Email        string `json:"email"        gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	Username     string `json:"username"     gorm:"type:varchar(20);not null;uniqueIndex:ux_users_username"`
	DisplayName  string `json:"displayName"  gorm:"type:varchar(120);not null;default:''"`
	IsPremium    bool   `json:"isPremium"    gorm:"not null;default:false"`
	MessageCount int    `json:"messageCount" gorm:"not null;default:0;check:message_count >= 0"`

	LinkToken     *string    `json:"-" gorm:"type:varchar(64)"`
	LinkExpiresAt *time.Time `json:"-"`
	LinkCreatedAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// LinkConfig is the single share token attached to a user.
type LinkConfig struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewLinkConfig builds a link created at now that expires after ttl.
func NewLinkConfig(token string, now time.Time, ttl time.Duration) LinkConfig {
	now = now.UTC()
	return LinkConfig{Token: token, CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

// Link returns the stored link, or nil when the token or its expiry is unset.
func (u *User) Link() *LinkConfig {
	if u == nil || u.LinkToken == nil || *u.LinkToken == "" || u.LinkExpiresAt == nil {
		return nil
	}
	lc := &LinkConfig{Token: *u.LinkToken, ExpiresAt: *u.LinkExpiresAt}
	if u.LinkCreatedAt != nil {
		lc.CreatedAt = *u.LinkCreatedAt
	}
	return lc
}

// SetLink overwrites the stored link. A nil config clears it.
func (u *User) SetLink(lc *LinkConfig) {
	if lc == nil {
		u.LinkToken, u.LinkExpiresAt, u.LinkCreatedAt = nil, nil, nil
		return
	}
	tok, exp, created := lc.Token, lc.ExpiresAt, lc.CreatedAt
	u.LinkToken, u.LinkExpiresAt, u.LinkCreatedAt = &tok, &exp, &created
}

// HasActiveLink reports whether the user's link is live at now.
//
// With a nil presented token it only checks expiry (owner view). With a
// token it also requires an exact, case-sensitive match (visitor view).
func (u *User) HasActiveLink(now time.Time, presented *string) bool {
	lc := u.Link()
	if lc == nil {
		return false
	}
	if !now.Before(lc.ExpiresAt) {
		return false
	}
	if presented == nil {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(*presented), []byte(lc.Token)) == 1
}

// LinkTimeRemaining is the time left on an active link, or zero.
func (u *User) LinkTimeRemaining(now time.Time) time.Duration {
	if !u.HasActiveLink(now, nil) {
		return 0
	}
	if d := u.Link().ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// InboxFull reports whether a free account has reached limit.
func (u *User) InboxFull(limit int) bool {
	return !u.IsPremium && u.MessageCount >= limit
}

// RemainingQuota returns how many more messages can be admitted, or -1 for
// premium accounts.
func (u *User) RemainingQuota(limit int) int {
	if u.IsPremium {
		return -1
	}
	if r := limit - u.MessageCount; r > 0 {
		return r
	}
	return 0
}
