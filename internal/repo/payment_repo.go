// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Payment model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/domain"
)

// CreatePayment inserts a pending payment. A reused transaction id yields
// ErrDuplicate.
func CreatePayment(ctx context.Context, db *gorm.DB, userID, txnID, method string, amount int64, currency string) (*domain.Payment, error) {
	now := time.Now().UTC()
	p := &domain.Payment{
		ID:            uuid.NewString(),
		UserID:        userID,
		TransactionID: txnID,
		Method:        method,
		Amount:        amount,
		Currency:      currency,
		Status:        domain.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, dupOr(err)
	}
	return p, nil
}

// RecordCompletedPayment inserts a payment that was settled outside the
// checkout flow. A reused transaction id yields ErrDuplicate.
func RecordCompletedPayment(ctx context.Context, db *gorm.DB, userID, txnID, method string, amount int64, currency string, at time.Time) (*domain.Payment, error) {
	now := time.Now().UTC()
	done := at.UTC()
	p := &domain.Payment{
		ID:            uuid.NewString(),
		UserID:        userID,
		TransactionID: txnID,
		Method:        method,
		Amount:        amount,
		Currency:      currency,
		Status:        domain.PaymentCompleted,
		CompletedAt:   &done,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, dupOr(err)
	}
	return p, nil
}

// GetPaymentByTxn looks a payment up by its transaction id.
func GetPaymentByTxn(ctx context.Context, db *gorm.DB, txnID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := db.WithContext(ctx).Where("transaction_id = ?", txnID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CompletePayment moves a pending payment to completed. It reports false
// when the payment was already completed, so callers can treat repeated
// callbacks as no-ops.
func CompletePayment(ctx context.Context, db *gorm.DB, txnID string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("transaction_id = ? AND status = ?", txnID, domain.PaymentPending).
		Updates(map[string]any{
			"status":       domain.PaymentCompleted,
			"completed_at": at.UTC(),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// LatestPayment returns the user's most recent payment, any status.
func LatestPayment(ctx context.Context, db *gorm.DB, userID string) (*domain.Payment, error) {
	var p domain.Payment
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}
