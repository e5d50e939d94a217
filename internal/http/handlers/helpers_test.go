package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-kala-backend/internal/auth"
	"github.com/tbourn/go-kala-backend/internal/domain"
	"github.com/tbourn/go-kala-backend/internal/http/middleware"
	"github.com/tbourn/go-kala-backend/internal/repo"
	"github.com/tbourn/go-kala-backend/internal/services"
)

// ---------- test DB + repo shim ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// testUserRepo implements services.UserRepo with the repo package, like
// the router's shim.
type testUserRepo struct{}

func (testUserRepo) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}
func (testUserRepo) GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return repo.GetUserByUsername(ctx, db, username)
}
func (testUserRepo) UsernameTaken(ctx context.Context, db *gorm.DB, username, exceptID string) (bool, error) {
	return repo.UsernameTaken(ctx, db, username, exceptID)
}
func (testUserRepo) UpdateUserFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return repo.UpdateUserFields(ctx, db, id, fields)
}
func (testUserRepo) SetUserLink(ctx context.Context, db *gorm.DB, id string, lc domain.LinkConfig) error {
	return repo.SetUserLink(ctx, db, id, lc)
}

// ---------- test server ----------

type testEnv struct {
	db     *gorm.DB
	r      *gin.Engine
	tokens *auth.TokenMaker
	links  *services.LinkService
}

type envOption func(*Deps)

func withWebhookSecret(s string) envOption { return func(d *Deps) { d.WebhookSecret = s } }

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	tokens := auth.NewTokenMaker("handler-test-secret", time.Hour)
	ids := auth.NewLocal(db)

	subs := services.NewSubscriptionService(db, nil)
	links := services.NewLinkService(db, testUserRepo{}, nil, "https://kala.test")
	d := Deps{
		Auth:     services.NewAuthService(db, ids, nil, tokens),
		Messages: services.NewMessageService(db, nil),
		Links:    links,
		Users:    services.NewUserService(db, testUserRepo{}, ids, nil),
		Payments: services.NewPaymentService(db, subs, "244900000000"),
	}
	for _, o := range opts {
		o(&d)
	}
	h := New(d)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}))
	authed := middleware.RequireAuth(tokens)

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/google", h.LoginWithGoogle)
	r.POST("/auth/logout", h.Logout)

	r.POST("/messages/send", h.SendMessage)
	r.GET("/messages/list/:userId", authed, h.ListMessages)
	r.POST("/messages/read/:messageId", authed, h.MarkAsRead)
	r.DELETE("/messages/:messageId", authed, h.DeleteMessage)
	r.GET("/messages/unread/count", authed, h.CountUnread)

	r.GET("/users/me", authed, h.GetMe)
	r.PUT("/users/profile", authed, h.UpdateProfile)
	r.GET("/users/available/:username", h.UsernameAvailable)
	r.GET("/users/:username", h.GetPublicProfile)

	r.POST("/links", authed, h.GenerateLink)
	r.GET("/links/me", authed, h.LinkStatus)
	r.GET("/links/:username", h.VerifyLink)

	r.POST("/payments/create", authed, h.CreatePayment)
	r.POST("/payments/callback", h.PaymentCallback)
	r.POST("/payments/cancel", authed, h.CancelPremium)
	r.GET("/payments/status", authed, h.SubscriptionStatus)

	return &testEnv{db: db, r: r, tokens: tokens, links: links}
}

// seedUser stores a profile directly and returns it with a session token.
func (e *testEnv) seedUser(t *testing.T, username string, premium bool, count int) (*domain.User, string) {
	t.Helper()
	u := &domain.User{
		Email:        username + "@kala.ao",
		Username:     username,
		DisplayName:  username,
		IsPremium:    premium,
		MessageCount: count,
	}
	if err := repo.CreateUser(context.Background(), e.db, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	tok, err := e.tokens.Generate(u.ID, u.Username)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return u, tok
}

type request struct {
	method, path string
	body         any
	token        string
	headers      map[string]string
}

func (e *testEnv) do(t *testing.T, rq request) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := rq.body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(rq.method, rq.path, &buf)
	if rq.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rq.token != "" {
		req.Header.Set("Authorization", "Bearer "+rq.token)
	}
	for k, v := range rq.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d; want %d (body %s)", w.Code, status, w.Body.String())
	}
	resp := decode[ErrorResponse](t, w)
	if resp.Success || resp.Code != code || resp.Message == "" {
		t.Fatalf("unexpected error body: %+v", resp)
	}
	return resp
}

func reload(t *testing.T, db *gorm.DB, id string) *domain.User {
	t.Helper()
	u, err := repo.GetUser(context.Background(), db, id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	return u
}

const validText = "Olá! Adorei a tua palestra de ontem."
