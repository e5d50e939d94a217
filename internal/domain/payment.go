package domain

import "time"

// PaymentStatus tracks a premium purchase attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// Accepted payment methods. Settlement is handled by a human operator over
// WhatsApp; the method is recorded for reconciliation only.
const (
	MethodMulticaixa  = "multicaixa"
	MethodUnitelMoney = "unitel_money"
	MethodAppyPay     = "appypay"

	// MethodManual marks payments recorded by a callback with no checkout.
	MethodManual = "manual"
)

// ValidPaymentMethod reports whether m is one of the accepted methods.
func ValidPaymentMethod(m string) bool {
	switch m {
	case MethodMulticaixa, MethodUnitelMoney, MethodAppyPay:
		return true
	}
	return false
}

// Payment is one premium purchase, keyed by its transaction id.
type Payment struct {
	ID            string        `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID        string        `json:"userId"        gorm:"type:char(36);not null;index"`
	TransactionID string        `json:"transactionId" gorm:"type:varchar(64);not null;uniqueIndex:ux_payment_txn"`
	Method        string        `json:"method"        gorm:"type:varchar(32);not null"`
	Amount        int64         `json:"amount"        gorm:"not null"`
	Currency      string        `json:"currency"      gorm:"type:varchar(8);not null"`
	Status        PaymentStatus `json:"status"        gorm:"type:varchar(16);not null;default:'pending'"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// TableName returns the database table name for Payment.
func (Payment) TableName() string { return "payments" }
