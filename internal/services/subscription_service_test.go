package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/repo"
)

func TestSubscriptionService_ActivateAndCancel(t *testing.T) {
	db := newSvcDB(t)
	u := seedUser(t, db, "ana", false, 80)
	cache := newFakeCache()
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewSubscriptionService(db, cache)
	s.Now = fixedClock(t0)
	ctx := context.Background()

	require.NoError(t, s.ActivatePremium(ctx, u.ID, "KALA-1", domain.MethodMulticaixa))
	assert.True(t, reloadUser(t, db, u.ID).IsPremium)
	assert.True(t, cache.wasInvalidated("ana"))

	sub, err := repo.GetSubscription(ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, sub.Status)
	assert.Equal(t, domain.PlanPremium, sub.Plan)
	assert.Equal(t, "KALA-1", sub.TransactionID)
	assert.WithinDuration(t, t0.Add(30*24*time.Hour), *sub.EndDate, time.Second)

	st, err := s.GetStatus(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, st.IsPremium)
	assert.Equal(t, domain.StatusActive, st.Status)
	assert.Equal(t, 30, st.DaysRemaining)

	// Premium lifts the quota straight away.
	ms := NewMessageService(db, nil)
	_, err = ms.Send(ctx, "ana", validText, SendOptions{})
	require.NoError(t, err)

	require.NoError(t, s.CancelPremium(ctx, u.ID))
	assert.False(t, reloadUser(t, db, u.ID).IsPremium)
	st, err = s.GetStatus(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, st.IsPremium)
	assert.Equal(t, domain.PlanFree, st.Plan)
	assert.Equal(t, domain.StatusCancelled, st.Status)
}

func TestSubscriptionService_FlagIsAuthoritative(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()
	s := NewSubscriptionService(db, nil)

	// Manual activation: flag set, no audit record.
	manual := seedUser(t, db, "manual", true, 0)
	st, err := s.GetStatus(ctx, manual.ID)
	require.NoError(t, err)
	assert.True(t, st.IsPremium)
	assert.Equal(t, domain.StatusActive, st.Status)
	require.NoError(t, s.CancelPremium(ctx, manual.ID))
	assert.False(t, reloadUser(t, db, manual.ID).IsPremium)

	// Past end date: the record reads expired, the flag still grants premium.
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	old := seedUser(t, db, "old", false, 0)
	s.Now = fixedClock(t0)
	require.NoError(t, s.ActivatePremium(ctx, old.ID, "KALA-3", ""))
	s.Now = fixedClock(t0.Add(31 * 24 * time.Hour))
	st, err = s.GetStatus(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, st.IsPremium)
	assert.Equal(t, domain.StatusExpired, st.Status)
	assert.Zero(t, st.DaysRemaining)

	// Free user without a record.
	free := seedUser(t, db, "free", false, 0)
	st, err = s.GetStatus(ctx, free.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInactive, st.Status)
	assert.Equal(t, domain.PlanFree, st.Plan)
}

func TestSubscriptionService_UnknownUser(t *testing.T) {
	s := NewSubscriptionService(newSvcDB(t), nil)
	ctx := context.Background()
	assert.True(t, errors.Is(s.ActivatePremium(ctx, "ghost", "KALA-4", ""), ErrUserNotFound))
	assert.True(t, errors.Is(s.CancelPremium(ctx, "ghost"), ErrUserNotFound))
	_, err := s.GetStatus(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
