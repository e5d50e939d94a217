package domain

import "time"

// Identity is the sign-in credential behind a User. It shares the user's id.
//
// Pending marks an identity whose profile row could not be written during
// registration; an operator (or a later profile write) completes it.
type Identity struct {
	ID            string    `gorm:"type:char(36);primaryKey"`
	Email         string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_identity_email"`
	PasswordHash  string    `gorm:"type:varchar(100);not null;default:''"`
	GoogleSubject *string   `gorm:"type:varchar(64);uniqueIndex:ux_identity_google"`
	Pending       bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time
}

// TableName returns the database table name for Identity.
func (Identity) TableName() string { return "identities" }
