package domain

import (
	"math"
	"time"
)

// Plan is the commercial tier of an account.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// SubscriptionStatus is the lifecycle state of a subscription record.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusInactive  SubscriptionStatus = "inactive"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
)

// Subscription is the audit record written next to User.IsPremium whenever
// premium is activated or cancelled. Admission control never reads it; the
// boolean on User is the entitlement.
type Subscription struct {
	ID            string             `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID        string             `json:"userId"        gorm:"type:char(36);not null;uniqueIndex:ux_subscription_user"`
	Status        SubscriptionStatus `json:"status"        gorm:"type:varchar(16);not null;default:'inactive'"`
	Plan          Plan               `json:"plan"          gorm:"type:varchar(16);not null;default:'free'"`
	StartDate     *time.Time         `json:"startDate,omitempty"`
	EndDate       *time.Time         `json:"endDate,omitempty"`
	TransactionID string             `json:"transactionId" gorm:"type:varchar(64);not null;default:''"`
	PaymentMethod string             `json:"paymentMethod" gorm:"type:varchar(32);not null;default:''"`
	Price         int64              `json:"price"         gorm:"not null;default:0"`
	Currency      string             `json:"currency"      gorm:"type:varchar(8);not null;default:''"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// EffectiveStatus applies lazy expiry: an active record whose end date has
// passed reads as expired. Nothing is written back.
func (s *Subscription) EffectiveStatus(now time.Time) SubscriptionStatus {
	if s == nil {
		return StatusInactive
	}
	if s.Status == StatusActive && s.EndDate != nil && !now.Before(*s.EndDate) {
		return StatusExpired
	}
	return s.Status
}

// DaysRemaining rounds the time left on an active record up to whole days.
func (s *Subscription) DaysRemaining(now time.Time) int {
	if s.EffectiveStatus(now) != StatusActive || s.EndDate == nil {
		return 0
	}
	return int(math.Ceil(s.EndDate.Sub(now).Hours() / 24))
}
