package domain

import "time"

// Message is an anonymous note left in a user's inbox.
//
// Messages are hard-deleted. Removing one never gives quota back to the
// recipient.
type Message struct {
	ID              string    `json:"id"              gorm:"type:char(36);primaryKey"`
	RecipientUserID string    `json:"recipientUserId" gorm:"type:char(36);not null;index:idx_inbox,priority:1"`
	Text            string    `json:"text"            gorm:"type:text;not null"`
	Timestamp       time.Time `json:"timestamp"       gorm:"column:sent_at;not null;index:idx_inbox,priority:2"`
	Read            bool      `json:"read"            gorm:"column:is_read;not null;default:false;index"`
	UpdatedAt       time.Time `json:"-"`

	Recipient User `json:"-" gorm:"foreignKey:RecipientUserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
