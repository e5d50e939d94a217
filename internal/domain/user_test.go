package domain

import (
	"strings"
	"testing"
	"time"
)

func strptr(s string) *string { return &s }

func TestHasActiveLink_NoLink(t *testing.T) {
	var u User
	if u.HasActiveLink(time.Now(), nil) {
		t.Fatalf("user without link must not be active")
	}
	u.LinkToken = strptr("tok")
	if u.HasActiveLink(time.Now(), nil) {
		t.Fatalf("token without expiry must not be active")
	}
}

func TestHasActiveLink_ExpiryBoundary(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var u User
	lc := NewLinkConfig("tok-1", t0, DefaultLinkTTL)
	u.SetLink(&lc)

	if !u.HasActiveLink(t0.Add(47*time.Hour+59*time.Minute), nil) {
		t.Fatalf("link should be active just before 48h")
	}
	if u.HasActiveLink(t0.Add(48*time.Hour), nil) {
		t.Fatalf("link must be inactive at exactly 48h")
	}
	if u.HasActiveLink(t0.Add(72*time.Hour), nil) {
		t.Fatalf("link must be inactive after 48h")
	}
}

func TestHasActiveLink_TokenExactMatch(t *testing.T) {
	t0 := time.Now().UTC()
	var u User
	lc := NewLinkConfig("AbC-123", t0, DefaultLinkTTL)
	u.SetLink(&lc)

	now := t0.Add(time.Hour)
	if !u.HasActiveLink(now, strptr("AbC-123")) {
		t.Fatalf("exact token should match")
	}
	for _, bad := range []string{"abc-123", "AbC-12", "AbC-1234", "", strings.ToUpper("AbC-123")} {
		if u.HasActiveLink(now, strptr(bad)) {
			t.Fatalf("token %q must not match", bad)
		}
	}
	if u.HasActiveLink(t0.Add(49*time.Hour), strptr("AbC-123")) {
		t.Fatalf("expired link must not match even with the right token")
	}
}

func TestSetLink_OverwriteInvalidatesPrevious(t *testing.T) {
	t0 := time.Now().UTC()
	var u User
	first := NewLinkConfig("first", t0, DefaultLinkTTL)
	u.SetLink(&first)
	second := NewLinkConfig("second", t0.Add(time.Minute), DefaultLinkTTL)
	u.SetLink(&second)

	now := t0.Add(2 * time.Minute)
	if u.HasActiveLink(now, strptr("first")) {
		t.Fatalf("old token must be invalid after regeneration")
	}
	if !u.HasActiveLink(now, strptr("second")) {
		t.Fatalf("new token should be valid")
	}

	u.SetLink(nil)
	if u.Link() != nil || u.HasActiveLink(now, nil) {
		t.Fatalf("SetLink(nil) should clear the link")
	}
}

func TestLinkTimeRemaining(t *testing.T) {
	t0 := time.Now().UTC()
	var u User
	if got := u.LinkTimeRemaining(t0); got != 0 {
		t.Fatalf("no link: remaining = %v, want 0", got)
	}
	lc := NewLinkConfig("tok", t0, DefaultLinkTTL)
	u.SetLink(&lc)

	if got := u.LinkTimeRemaining(t0.Add(47 * time.Hour)); got != time.Hour {
		t.Fatalf("remaining = %v, want 1h", got)
	}
	if got := u.LinkTimeRemaining(t0.Add(50 * time.Hour)); got != 0 {
		t.Fatalf("expired: remaining = %v, want 0", got)
	}
}

func TestInboxFullAndRemainingQuota(t *testing.T) {
	u := User{MessageCount: 79}
	if u.InboxFull(DefaultFreeMessageLimit) {
		t.Fatalf("79 of 80 is not full")
	}
	if got := u.RemainingQuota(DefaultFreeMessageLimit); got != 1 {
		t.Fatalf("remaining = %d, want 1", got)
	}
	u.MessageCount = 80
	if !u.InboxFull(DefaultFreeMessageLimit) || u.RemainingQuota(DefaultFreeMessageLimit) != 0 {
		t.Fatalf("80 of 80 should be full with zero remaining")
	}
	u.IsPremium = true
	u.MessageCount = 1000
	if u.InboxFull(DefaultFreeMessageLimit) || u.RemainingQuota(DefaultFreeMessageLimit) != -1 {
		t.Fatalf("premium inbox is never full")
	}
}
