// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Subscription audit record (one row per user).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-kala-backend/internal/domain"
)

// GetSubscription returns the user's subscription record or ErrNotFound.
func GetSubscription(ctx context.Context, db *gorm.DB, userID string) (*domain.Subscription, error) {
	var s domain.Subscription
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSubscription writes s as the user's only record, replacing any
// previous one in place. ID and CreatedAt of an existing row are kept.
func UpsertSubscription(ctx context.Context, db *gorm.DB, s *domain.Subscription) error {
	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "plan", "start_date", "end_date",
				"transaction_id", "payment_method", "price", "currency", "updated_at",
			}),
		}).
		Create(s).Error
}

// UpdateSubscriptionStatus changes only the status of the user's record.
// Returns ErrNotFound if the user has none.
func UpdateSubscriptionStatus(ctx context.Context, db *gorm.DB, userID string, status domain.SubscriptionStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"status":     status,
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
