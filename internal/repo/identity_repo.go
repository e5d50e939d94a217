// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for sign-in
// identities.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/domain"
)

// CreateIdentity inserts id. Emails are stored lowercased; an email or
// Google subject already in use yields ErrDuplicate.
func CreateIdentity(ctx context.Context, db *gorm.DB, id *domain.Identity) error {
	now := time.Now().UTC()
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	id.CreatedAt = now
	id.UpdatedAt = now
	return dupOr(db.WithContext(ctx).Create(id).Error)
}

// GetIdentity fetches an identity by its (user) id.
func GetIdentity(ctx context.Context, db *gorm.DB, id string) (*domain.Identity, error) {
	var out domain.Identity
	if err := db.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// GetIdentityByEmail fetches an identity by email, case-insensitively.
func GetIdentityByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Identity, error) {
	var out domain.Identity
	err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetIdentityByGoogleSubject fetches the identity linked to a Google account.
func GetIdentityByGoogleSubject(ctx context.Context, db *gorm.DB, subject string) (*domain.Identity, error) {
	var out domain.Identity
	if err := db.WithContext(ctx).Where("google_subject = ?", subject).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateIdentity applies a partial update keyed by column name.
func UpdateIdentity(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Identity{}).
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

// SetIdentityPending flags (or clears) an identity whose profile is missing.
func SetIdentityPending(ctx context.Context, db *gorm.DB, id string, pending bool) error {
	return UpdateIdentity(ctx, db, id, map[string]any{"pending": pending})
}

// DeleteIdentity removes an identity row. A missing row yields ErrNotFound.
func DeleteIdentity(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Identity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
