package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string, premium bool, count int) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:        username + "@kala.ao",
		Username:     username,
		DisplayName:  username,
		IsPremium:    premium,
		MessageCount: count,
	}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func reloadUser(t *testing.T, db *gorm.DB, id string) *domain.User {
	t.Helper()
	u, err := repo.GetUser(context.Background(), db, id)
	if err != nil {
		t.Fatalf("reload user %s: %v", id, err)
	}
	return u
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

// gormUsers satisfies UserRepo with the real repository functions.
type gormUsers struct{}

func (gormUsers) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}
func (gormUsers) GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return repo.GetUserByUsername(ctx, db, username)
}
func (gormUsers) UsernameTaken(ctx context.Context, db *gorm.DB, username, exceptID string) (bool, error) {
	return repo.UsernameTaken(ctx, db, username, exceptID)
}
func (gormUsers) UpdateUserFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return repo.UpdateUserFields(ctx, db, id, fields)
}
func (gormUsers) SetUserLink(ctx context.Context, db *gorm.DB, id string, lc domain.LinkConfig) error {
	return repo.SetUserLink(ctx, db, id, lc)
}

// ----- Fake repo -----

type fakeUserRepo struct {
	user    *domain.User
	getErr  error
	linkErr error

	setLinkID string
	setLink   domain.LinkConfig
}

func (r *fakeUserRepo) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.user == nil || r.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r.user
	return &cp, nil
}

func (r *fakeUserRepo) GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.user == nil || r.user.Username != username {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r.user
	return &cp, nil
}

func (r *fakeUserRepo) UsernameTaken(ctx context.Context, db *gorm.DB, username, exceptID string) (bool, error) {
	return r.user != nil && r.user.Username == username && r.user.ID != exceptID, nil
}

func (r *fakeUserRepo) UpdateUserFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return nil
}

func (r *fakeUserRepo) SetUserLink(ctx context.Context, db *gorm.DB, id string, lc domain.LinkConfig) error {
	if r.linkErr != nil {
		return r.linkErr
	}
	r.setLinkID, r.setLink = id, lc
	if r.user != nil {
		r.user.SetLink(&lc)
	}
	return nil
}

// ----- Fake cache -----

type fakeCache struct {
	mu          sync.Mutex
	store       map[string]any
	invalidated []string
	getErr      error
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string]any{}} }

func (c *fakeCache) Get(ctx context.Context, username string, result any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	v, ok := c.store[username]
	if !ok {
		return false, nil
	}
	if p, ok := result.(*PublicProfile); ok {
		*p = *(v.(*PublicProfile))
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, username string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[username] = value
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, usernames ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range usernames {
		delete(c.store, u)
		c.invalidated = append(c.invalidated, u)
	}
	return nil
}

func (c *fakeCache) wasInvalidated(username string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range c.invalidated {
		if u == username {
			return true
		}
	}
	return false
}
