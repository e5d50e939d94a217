// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/domain"
)

// inboxOrder is newest first with id as a tiebreak.
const inboxOrder = "sent_at DESC, id DESC"

// CreateMessage inserts a new unread message for recipientID.
func CreateMessage(ctx context.Context, db *gorm.DB, recipientID, text string, at time.Time) (*domain.Message, error) {
	m := &domain.Message{
		ID:              uuid.NewString(),
		RecipientUserID: recipientID,
		Text:            text,
		Timestamp:       at.UTC(),
		UpdatedAt:       at.UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns every message in recipientID's inbox, newest first.
func ListMessages(ctx context.Context, db *gorm.DB, recipientID string) ([]domain.Message, error) {
	out := []domain.Message{}
	err := db.WithContext(ctx).
		Where("recipient_user_id = ?", recipientID).
		Order(inboxOrder).
		Find(&out).Error
	return out, err
}

// ListMessagesPage returns a slice of the inbox, newest first.
func ListMessagesPage(ctx context.Context, db *gorm.DB, recipientID string, offset, limit int) ([]domain.Message, error) {
	out := []domain.Message{}
	err := db.WithContext(ctx).
		Where("recipient_user_id = ?", recipientID).
		Order(inboxOrder).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, recipientID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE recipient_user_id = ?", recipientID).
		Scan(&total).Error
	return total, err
}

// CountUnread returns how many of recipientID's messages are still unread.
func CountUnread(ctx context.Context, db *gorm.DB, recipientID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("recipient_user_id = ? AND is_read = ?", recipientID, false).
		Count(&total).Error
	return total, err
}

// MarkMessageRead sets the read flag on a message owned by recipientID.
// It returns ErrNotFound when the message is missing or owned by someone
// else. Marking an already-read message succeeds.
func MarkMessageRead(ctx context.Context, db *gorm.DB, id, recipientID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND recipient_user_id = ?", id, recipientID).
		Updates(map[string]any{
			"is_read":    true,
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

// DeleteMessage removes a message owned by recipientID. The recipient's
// message counter is left alone.
func DeleteMessage(ctx context.Context, db *gorm.DB, id, recipientID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND recipient_user_id = ?", id, recipientID).
		Delete(&domain.Message{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
