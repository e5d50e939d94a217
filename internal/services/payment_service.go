// Package services – PaymentService
//
// There is no payment gateway. Create records a pending payment and hands
// back a WhatsApp link that a human operator uses to settle it; the
// operator (or an integration acting for them) then calls Callback, which
// completes the payment and activates premium in the same transaction.
// Callbacks are idempotent on the transaction id.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/repo"
)

// Checkout is what the client needs to finish a premium purchase.
type Checkout struct {
	TransactionID string `json:"transactionId" example:"KALA-3F9A0C12B7D4"`
	PaymentURL    string `json:"paymentUrl"    example:"https://wa.me/244900000000?text=..."`
	Amount        int64  `json:"amount"        example:"3000"`
	Currency      string `json:"currency"      example:"AOA"`
	Method        string `json:"method"        example:"multicaixa"`
}

// CallbackInput is a payment confirmation as asserted by the caller.
type CallbackInput struct {
	TransactionID string
	Status        string
	UserID        string
	Method        string
}

// CallbackResult reports whether the callback changed anything.
type CallbackResult struct {
	AlreadyProcessed bool
}

// PaymentService runs the mock premium purchase flow.
type PaymentService struct {
	DB   *gorm.DB
	Subs *SubscriptionService

	Price           int64
	Currency        string
	WhatsAppContact string

	// Timeout bounds each storage call.
	Timeout time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewPaymentService returns a PaymentService priced like subs.
func NewPaymentService(db *gorm.DB, subs *SubscriptionService, whatsApp string) *PaymentService {
	return &PaymentService{
		DB:              db,
		Subs:            subs,
		Price:           subs.Price,
		Currency:        subs.Currency,
		WhatsAppContact: whatsApp,
		Timeout:         DefaultTimeout,
	}
}

// Create records a pending payment for userID and returns the WhatsApp
// contact URL carrying its transaction id.
func (s *PaymentService) Create(ctx context.Context, userID, method string) (*Checkout, error) {
	ctx, span := otel.Tracer("services/PaymentService").Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("payment.method", method),
		),
	)
	defer span.End()

	if !domain.ValidPaymentMethod(method) {
		return nil, ErrInvalidPaymentMethod
	}

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	u, err := repo.GetUser(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, classify(ctx, err)
	}

	txn, err := newTransactionID()
	if err != nil {
		return nil, classify(ctx, err)
	}
	p, err := repo.CreatePayment(ctx, s.DB, u.ID, txn, method, s.Price, s.Currency)
	if err != nil {
		return nil, classify(ctx, err)
	}
	span.SetAttributes(attribute.String("payment.transaction_id", p.TransactionID))

	return &Checkout{
		TransactionID: p.TransactionID,
		PaymentURL:    s.contactURL(u.Username, p),
		Amount:        p.Amount,
		Currency:      p.Currency,
		Method:        p.Method,
	}, nil
}

// Callback completes a payment and activates premium for its owner.
//
// Only "success" and "completed" are accepted. A transaction id with no
// payment is treated as a manual activation for UserID and recorded as a
// completed payment. A repeated callback for a completed payment changes
// nothing, whichever path created it.
func (s *PaymentService) Callback(ctx context.Context, in CallbackInput) (*CallbackResult, error) {
	ctx, span := otel.Tracer("services/PaymentService").Start(ctx, "Callback",
		trace.WithAttributes(
			attribute.String("user.id", in.UserID),
			attribute.String("payment.transaction_id", in.TransactionID),
			attribute.String("payment.status", in.Status),
		),
	)
	defer span.End()

	in.TransactionID = strings.TrimSpace(in.TransactionID)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.TransactionID == "" || in.UserID == "" {
		return nil, fmt.Errorf("%w: transactionId and userId are required", ErrInvalidInput)
	}
	switch strings.ToLower(strings.TrimSpace(in.Status)) {
	case "success", "completed":
	default:
		return nil, ErrPaymentNotCompleted
	}

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		username string
		result   CallbackResult
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		method := in.Method
		p, err := repo.GetPaymentByTxn(ctx, tx, in.TransactionID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			if method == "" {
				method = domain.MethodManual
			}
			if _, err := repo.RecordCompletedPayment(ctx, tx, in.UserID, in.TransactionID, method, s.Price, s.Currency, clock(s.Now)); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if p.UserID != in.UserID {
				return fmt.Errorf("%w: transaction belongs to another user", ErrInvalidInput)
			}
			changed, err := repo.CompletePayment(ctx, tx, in.TransactionID, clock(s.Now))
			if err != nil {
				return err
			}
			if !changed {
				result.AlreadyProcessed = true
				return nil
			}
			method = p.Method
		}
		username, err = s.Subs.activate(ctx, tx, in.UserID, in.TransactionID, method)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrUserNotFound
		case isDuplicate(err):
			// A concurrent callback recorded the same manual transaction.
			return &CallbackResult{AlreadyProcessed: true}, nil
		}
		return nil, classify(ctx, err)
	}
	if !result.AlreadyProcessed {
		s.Subs.activated(ctx, username)
	}
	return &result, nil
}

// Status returns the premium view for userID.
func (s *PaymentService) Status(ctx context.Context, userID string) (*SubscriptionStatus, error) {
	return s.Subs.GetStatus(ctx, userID)
}

// Cancel switches premium off for userID.
func (s *PaymentService) Cancel(ctx context.Context, userID string) error {
	return s.Subs.CancelPremium(ctx, userID)
}

func (s *PaymentService) contactURL(username string, p *domain.Payment) string {
	msg := fmt.Sprintf(
		"Olá! Quero ativar o KALA Premium.\nUtilizador: @%s\nTransação: %s\nValor: %d %s\nMétodo: %s",
		username, p.TransactionID, p.Amount, p.Currency, p.Method,
	)
	return "https://wa.me/" + digits(s.WhatsAppContact) + "?text=" + url.QueryEscape(msg)
}

func newTransactionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	hexID := strings.ReplaceAll(id.String(), "-", "")
	return "KALA-" + strings.ToUpper(hexID[:12]), nil
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
