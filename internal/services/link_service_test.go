package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-kala-backend/internal/domain"
)

func TestNewLinkService_Defaults(t *testing.T) {
	r := &fakeUserRepo{}
	s := NewLinkService(nil, r, nil, "https://kala.ao")
	if s.Repo != r {
		t.Fatalf("repo not set")
	}
	if s.TTL != 48*time.Hour {
		t.Fatalf("TTL default = 48h, got %v", s.TTL)
	}
	if s.Timeout != DefaultTimeout {
		t.Fatalf("Timeout default = %v, got %v", DefaultTimeout, s.Timeout)
	}
}

func TestLinkService_Generate_SetsTokenAndExpiry(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &fakeUserRepo{user: &domain.User{ID: "u1", Username: "ana"}}
	cache := newFakeCache()
	s := NewLinkService(nil, r, cache, "https://kala.ao/")
	s.Now = fixedClock(t0)

	info, err := s.Generate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if info.Token == "" || r.setLink.Token != info.Token || r.setLinkID != "u1" {
		t.Fatalf("token not persisted: info=%+v stored=%+v", info, r.setLink)
	}
	if !info.ExpiresAt.Equal(t0.Add(48 * time.Hour)) {
		t.Fatalf("expiresAt = %v", info.ExpiresAt)
	}
	if !info.Active || info.RemainingSeconds != int64(48*time.Hour/time.Second) {
		t.Fatalf("unexpected status: %+v", info)
	}
	want := "https://kala.ao/m/ana?t=" + info.Token
	if info.URL != want {
		t.Fatalf("URL = %q, want %q", info.URL, want)
	}
	if !cache.wasInvalidated("ana") {
		t.Fatalf("profile cache not invalidated")
	}
}

func TestLinkService_Generate_ReplacesPreviousToken(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &fakeUserRepo{user: &domain.User{ID: "u1", Username: "ana"}}
	s := NewLinkService(nil, r, nil, "")
	s.Now = fixedClock(t0)
	ctx := context.Background()

	first, err := s.Generate(ctx, "u1")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := s.Generate(ctx, "u1"); err != nil {
		t.Fatalf("second: %v", err)
	}
	if err := s.Verify(ctx, "ana", first.Token); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("first token should be dead, got %v", err)
	}
}

func TestLinkService_Generate_Errors(t *testing.T) {
	s := NewLinkService(nil, &fakeUserRepo{}, nil, "")
	if _, err := s.Generate(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	s.Repo = &fakeUserRepo{getErr: errors.New("boom")}
	_, err := s.Generate(context.Background(), "u1")
	if !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}

	s.Repo = &fakeUserRepo{user: &domain.User{ID: "u1"}, linkErr: context.DeadlineExceeded}
	_, err = s.Generate(context.Background(), "u1")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestLinkService_Verify_Boundary(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &fakeUserRepo{user: &domain.User{ID: "u1", Username: "ana"}}
	s := NewLinkService(nil, r, nil, "")
	s.Now = fixedClock(t0)
	ctx := context.Background()

	info, err := s.Generate(ctx, "u1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	s.Now = fixedClock(t0.Add(47*time.Hour + 59*time.Minute))
	if err := s.Verify(ctx, "ana", info.Token); err != nil {
		t.Fatalf("47h59m should be valid: %v", err)
	}
	if err := s.Verify(ctx, "ana", strings.ToUpper(info.Token)); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("case-changed token must fail, got %v", err)
	}

	s.Now = fixedClock(t0.Add(48 * time.Hour))
	if err := s.Verify(ctx, "ana", info.Token); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("48h should be expired, got %v", err)
	}
	if err := s.Verify(ctx, "nobody", info.Token); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLinkService_StatusAndRemaining(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &fakeUserRepo{user: &domain.User{ID: "u1", Username: "ana"}}
	s := NewLinkService(nil, r, nil, "")
	s.Now = fixedClock(t0)
	ctx := context.Background()

	info, err := s.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if info.Active || info.Token != "" || info.RemainingSeconds != 0 {
		t.Fatalf("expected no link, got %+v", info)
	}

	if _, err := s.Generate(ctx, "u1"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	s.Now = fixedClock(t0.Add(46 * time.Hour))
	d, err := s.Remaining(ctx, "u1")
	if err != nil || d != 2*time.Hour {
		t.Fatalf("Remaining = %v err=%v, want 2h", d, err)
	}

	s.Now = fixedClock(t0.Add(72 * time.Hour))
	d, err = s.Remaining(ctx, "u1")
	if err != nil || d != 0 {
		t.Fatalf("expired Remaining = %v err=%v, want 0", d, err)
	}
}

func TestLinkService_WithDatabase(t *testing.T) {
	db := newSvcDB(t)
	u := seedUser(t, db, "kiala", false, 0)
	s := NewLinkService(db, gormUsers{}, nil, "https://kala.ao")
	ctx := context.Background()

	info, err := s.Generate(ctx, u.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got := reloadUser(t, db, u.ID)
	if got.Link() == nil || got.Link().Token != info.Token {
		t.Fatalf("link not stored: %+v", got.Link())
	}
	if err := s.Verify(ctx, "kiala", info.Token); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
