// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/domain"
)

// InboxStats returns the number of messages in recipientID's inbox and the
// greatest UpdatedAt among them. Reads flip UpdatedAt, so the pair changes
// whenever the inbox does. When the inbox is empty maxUpdatedAt is nil.
func InboxStats(ctx context.Context, db *gorm.DB, recipientID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("recipient_user_id = ?", recipientID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Latest row rather than MAX(), which comes back as TEXT in SQLite.
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
