package domain

import "time"

// Idempotency records the message produced for an Idempotency-Key sent with
// a message to a given recipient, so a retried send returns the original
// message instead of admitting a duplicate.
type Idempotency struct {
	ID          string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	RecipientID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_recipient_key,priority:1"`
	Key         string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_recipient_key,priority:2;index:idx_idem_key"`
	MessageID   string    `gorm:"type:TEXT NOT NULL"`
	Status      int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
