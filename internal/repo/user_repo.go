// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, so they can
// run inside a transaction opened by the service layer. Lookups return
// ErrNotFound when no row matches; unique index hits surface as ErrDuplicate.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/domain"
)

// CreateUser inserts u. The ID normally comes from the sign-in identity;
// a fresh UUID is used when it is empty.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return dupOr(db.WithContext(ctx).Create(u).Error)
}

// GetUser fetches a user by id.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername fetches a user by exact (case-sensitive) username.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches a user by email, compared case-insensitively.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UsernameTaken reports whether another user already holds username.
// Pass the caller's own id as exceptID when renaming; empty means none.
func UsernameTaken(ctx context.Context, db *gorm.DB, username, exceptID string) (bool, error) {
	var n int64
	q := db.WithContext(ctx).Model(&domain.User{}).Where("username = ?", username)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateUserFields applies a partial update to the user's mutable profile
// columns. Keys are column names. Returns ErrNotFound if no row matched.
func UpdateUserFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return dupOr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserLink overwrites the user's share link, invalidating any previous one.
func SetUserLink(ctx context.Context, db *gorm.DB, id string, lc domain.LinkConfig) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"link_token":      lc.Token,
			"link_expires_at": lc.ExpiresAt,
			"link_created_at": lc.CreatedAt,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AdmitMessage bumps the recipient's message counter if the inbox can still
// take a message: premium accounts always, free accounts while the counter
// is below limit. The check and the increment are one statement, so two
// concurrent senders cannot both take the last free slot.
//
// It returns false, nil when the recipient is over quota (or missing).
func AdmitMessage(ctx context.Context, db *gorm.DB, id string, limit int) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND (is_premium = ? OR message_count < ?)", id, true, limit).
		Updates(map[string]any{
			"message_count": gorm.Expr("message_count + ?", 1),
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetPremium flips the entitlement flag.
func SetPremium(ctx context.Context, db *gorm.DB, id string, premium bool) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_premium": premium,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
