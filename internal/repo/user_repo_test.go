package repo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbourn/go-kala-backend/internal/domain"
)

func TestCreateUser_Error_NoTable(t *testing.T) {
	db := newBareDB(t)
	if err := CreateUser(context.Background(), db, &domain.User{Username: "ana"}); err == nil {
		t.Fatalf("expected error due to missing users table")
	}
}

func TestCreateUser_FillsIDAndTimestamps(t *testing.T) {
	db := newRepoDB(t)
	u := seedUser(t, db, "ana_ao", false, 0)
	if u.ID == "" || u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Fatalf("expected id and timestamps to be set: %+v", u)
	}

	got, err := GetUser(context.Background(), db, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "ana_ao" || got.Email != "ana_ao@kala.ao" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := newRepoDB(t)
	seedUser(t, db, "dup", false, 0)
	err := CreateUser(context.Background(), db, &domain.User{Email: "other@kala.ao", Username: "dup"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetUserByUsername_CaseSensitive(t *testing.T) {
	db := newRepoDB(t)
	seedUser(t, db, "Maria", false, 0)
	ctx := context.Background()

	if _, err := GetUserByUsername(ctx, db, "Maria"); err != nil {
		t.Fatalf("exact match: %v", err)
	}
	if _, err := GetUserByUsername(ctx, db, "maria"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for different case, got %v", err)
	}
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	db := newRepoDB(t)
	seedUser(t, db, "joao", false, 0)
	got, err := GetUserByEmail(context.Background(), db, "JOAO@Kala.ao")
	if err != nil || got.Username != "joao" {
		t.Fatalf("GetUserByEmail: got=%+v err=%v", got, err)
	}
}

func TestUsernameTaken_ExceptSelf(t *testing.T) {
	db := newRepoDB(t)
	u := seedUser(t, db, "pedro", false, 0)
	ctx := context.Background()

	taken, err := UsernameTaken(ctx, db, "pedro", "")
	if err != nil || !taken {
		t.Fatalf("expected taken, got %v err=%v", taken, err)
	}
	taken, err = UsernameTaken(ctx, db, "pedro", u.ID)
	if err != nil || taken {
		t.Fatalf("own username should not count as taken, got %v err=%v", taken, err)
	}
	taken, _ = UsernameTaken(ctx, db, "livre", "")
	if taken {
		t.Fatalf("free username reported taken")
	}
}

func TestUpdateUserFields_SuccessDuplicateAndNotFound(t *testing.T) {
	db := newRepoDB(t)
	a := seedUser(t, db, "alpha", false, 0)
	seedUser(t, db, "beta", false, 0)
	ctx := context.Background()

	if err := UpdateUserFields(ctx, db, a.ID, map[string]any{"display_name": "Alfa"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := GetUser(ctx, db, a.ID)
	if got.DisplayName != "Alfa" {
		t.Fatalf("display name not updated: %+v", got)
	}

	if err := UpdateUserFields(ctx, db, a.ID, map[string]any{"username": "beta"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := UpdateUserFields(ctx, db, "missing", map[string]any{"display_name": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := UpdateUserFields(ctx, db, a.ID, nil); err != nil {
		t.Fatalf("empty update should be a no-op, got %v", err)
	}
}

func TestSetUserLink_Overwrites(t *testing.T) {
	db := newRepoDB(t)
	u := seedUser(t, db, "linked", false, 0)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := SetUserLink(ctx, db, u.ID, domain.NewLinkConfig("first", now, domain.DefaultLinkTTL)); err != nil {
		t.Fatalf("SetUserLink: %v", err)
	}
	if err := SetUserLink(ctx, db, u.ID, domain.NewLinkConfig("second", now, domain.DefaultLinkTTL)); err != nil {
		t.Fatalf("SetUserLink: %v", err)
	}
	got, _ := GetUser(ctx, db, u.ID)
	first, second := "first", "second"
	if got.HasActiveLink(now.Add(time.Minute), &first) || !got.HasActiveLink(now.Add(time.Minute), &second) {
		t.Fatalf("only the latest token should be live: %+v", got.Link())
	}

	if err := SetUserLink(ctx, db, "missing", domain.NewLinkConfig("x", now, time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdmitMessage_FreeLimitAndPremium(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	free := seedUser(t, db, "free_user", false, 79)
	prem := seedUser(t, db, "prem_user", true, 500)

	ok, err := AdmitMessage(ctx, db, free.ID, 80)
	if err != nil || !ok {
		t.Fatalf("79 -> 80 should be admitted: ok=%v err=%v", ok, err)
	}
	ok, err = AdmitMessage(ctx, db, free.ID, 80)
	if err != nil || ok {
		t.Fatalf("at 80 must be refused: ok=%v err=%v", ok, err)
	}
	got, _ := GetUser(ctx, db, free.ID)
	if got.MessageCount != 80 {
		t.Fatalf("count = %d, want 80", got.MessageCount)
	}

	ok, err = AdmitMessage(ctx, db, prem.ID, 80)
	if err != nil || !ok {
		t.Fatalf("premium must always be admitted: ok=%v err=%v", ok, err)
	}
	got, _ = GetUser(ctx, db, prem.ID)
	if got.MessageCount != 501 {
		t.Fatalf("premium count = %d, want 501", got.MessageCount)
	}

	ok, _ = AdmitMessage(ctx, db, "missing", 80)
	if ok {
		t.Fatalf("missing user must not be admitted")
	}
}

func TestAdmitMessage_ConcurrentLastSlot(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "racer", false, 75)

	var admitted int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := AdmitMessage(ctx, db, u.ID, 80); err == nil && ok {
				atomic.AddInt32(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	got, _ := GetUser(ctx, db, u.ID)
	if got.MessageCount > 80 {
		t.Fatalf("counter overshot the limit: %d", got.MessageCount)
	}
	if int(admitted) != got.MessageCount-75 {
		t.Fatalf("admitted %d but counter moved by %d", admitted, got.MessageCount-75)
	}
}

func TestSetPremium(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "upgrade", false, 0)

	if err := SetPremium(ctx, db, u.ID, true); err != nil {
		t.Fatalf("SetPremium: %v", err)
	}
	got, _ := GetUser(ctx, db, u.ID)
	if !got.IsPremium {
		t.Fatalf("expected premium")
	}
	if err := SetPremium(ctx, db, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
