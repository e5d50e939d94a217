// Package services – SubscriptionService
//
// The premium entitlement is the IsPremium flag on the user row; admission
// control reads nothing else. Every change to the flag also writes the
// user's Subscription record, which is kept as an audit trail with a start
// and end date. An end date in the past makes the record read as expired
// but does not revoke the flag.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/observability"
	"github.com/tbourn/go-kala-backend/internal/repo"
)

// DefaultPremiumPeriod is the length written to the audit record.
const DefaultPremiumPeriod = 30 * 24 * time.Hour

// SubscriptionStatus is the derived premium view of a user.
type SubscriptionStatus struct {
	IsPremium     bool                      `json:"isPremium"`
	Plan          domain.Plan               `json:"plan"`
	Status        domain.SubscriptionStatus `json:"status"`
	StartDate     *time.Time                `json:"startDate,omitempty"`
	EndDate       *time.Time                `json:"endDate,omitempty"`
	DaysRemaining int                       `json:"daysRemaining"`
}

// SubscriptionService toggles and reports premium state.
type SubscriptionService struct {
	DB    *gorm.DB
	Cache ProfileCache

	Period   time.Duration
	Price    int64
	Currency string

	// Timeout bounds each storage call.
	Timeout time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewSubscriptionService returns a SubscriptionService with a 30-day period.
func NewSubscriptionService(db *gorm.DB, cache ProfileCache) *SubscriptionService {
	return &SubscriptionService{
		DB:       db,
		Cache:    cache,
		Period:   DefaultPremiumPeriod,
		Price:    3000,
		Currency: "AOA",
		Timeout:  DefaultTimeout,
	}
}

// ActivatePremium switches premium on for userID after a confirmed payment.
func (s *SubscriptionService) ActivatePremium(ctx context.Context, userID, transactionID, method string) error {
	ctx, span := otel.Tracer("services/SubscriptionService").Start(ctx, "ActivatePremium",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("payment.transaction_id", transactionID),
		),
	)
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	var username string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := s.activate(ctx, tx, userID, transactionID, method)
		if err != nil {
			return err
		}
		username = u
		return nil
	})
	if err != nil {
		return s.mapErr(ctx, err)
	}
	s.activated(ctx, username)
	return nil
}

// activate writes the flag and the audit record on tx and returns the
// user's username. Callers own the transaction.
func (s *SubscriptionService) activate(ctx context.Context, tx *gorm.DB, userID, transactionID, method string) (string, error) {
	u, err := repo.GetUser(ctx, tx, userID)
	if err != nil {
		return "", err
	}
	if err := repo.SetPremium(ctx, tx, userID, true); err != nil {
		return "", err
	}
	period := s.Period
	if period <= 0 {
		period = DefaultPremiumPeriod
	}
	now := clock(s.Now)
	end := now.Add(period)
	sub := &domain.Subscription{
		UserID:        userID,
		Status:        domain.StatusActive,
		Plan:          domain.PlanPremium,
		StartDate:     &now,
		EndDate:       &end,
		TransactionID: transactionID,
		PaymentMethod: method,
		Price:         s.Price,
		Currency:      s.Currency,
	}
	if err := repo.UpsertSubscription(ctx, tx, sub); err != nil {
		return "", err
	}
	return u.Username, nil
}

// activated runs the post-commit side effects of an activation.
func (s *SubscriptionService) activated(ctx context.Context, username string) {
	observability.PremiumActivated()
	s.invalidate(ctx, username)
}

// CancelPremium switches premium off and marks the audit record cancelled.
func (s *SubscriptionService) CancelPremium(ctx context.Context, userID string) error {
	ctx, span := otel.Tracer("services/SubscriptionService").Start(ctx, "CancelPremium",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	var username string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := repo.GetUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		username = u.Username
		if err := repo.SetPremium(ctx, tx, userID, false); err != nil {
			return err
		}
		err = repo.UpdateSubscriptionStatus(ctx, tx, userID, domain.StatusCancelled)
		if errors.Is(err, repo.ErrNotFound) {
			// Premium granted without a record (manual activation).
			return nil
		}
		return err
	})
	if err != nil {
		return s.mapErr(ctx, err)
	}
	s.invalidate(ctx, username)
	return nil
}

// GetStatus derives the premium view of userID. It never writes.
func (s *SubscriptionService) GetStatus(ctx context.Context, userID string) (*SubscriptionStatus, error) {
	ctx, span := otel.Tracer("services/SubscriptionService").Start(ctx, "GetStatus",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		return nil, s.mapErr(ctx, err)
	}
	sub, err := repo.GetSubscription(ctx, s.DB, userID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, classify(ctx, err)
	}

	now := clock(s.Now)
	st := &SubscriptionStatus{IsPremium: u.IsPremium, Plan: domain.PlanFree, Status: domain.StatusInactive}
	if u.IsPremium {
		st.Plan = domain.PlanPremium
		st.Status = domain.StatusActive
	}
	if sub != nil {
		st.StartDate, st.EndDate = sub.StartDate, sub.EndDate
		if u.IsPremium {
			// The flag decides entitlement; the record only adds dates.
			if eff := sub.EffectiveStatus(now); eff == domain.StatusExpired {
				st.Status = eff
			}
			st.DaysRemaining = sub.DaysRemaining(now)
		} else if eff := sub.EffectiveStatus(now); eff != domain.StatusActive {
			st.Status = eff
		}
	}
	return st, nil
}

func (s *SubscriptionService) invalidate(ctx context.Context, username string) {
	if s.Cache == nil || username == "" {
		return
	}
	if err := s.Cache.Invalidate(ctx, username); err != nil {
		log.Warn().Err(err).Str("username", username).Msg("profile cache invalidate failed")
	}
}

func (s *SubscriptionService) mapErr(ctx context.Context, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUserNotFound
	}
	return classify(ctx, err)
}
