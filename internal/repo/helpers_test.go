package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-kala-backend/internal/domain"
)

// newRepoDB opens a private in-memory database. With no models given it
// runs the full AutoMigrate; pass models to migrate a subset, or call
// newBareDB for an empty schema.
func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	db := newBareDB(t)
	var err error
	if len(migrate) == 0 {
		err = AutoMigrate(db)
	} else {
		err = db.AutoMigrate(migrate...)
	}
	if err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newBareDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
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
	if err := CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func seedMessage(t *testing.T, db *gorm.DB, id, recipient string, at time.Time, read bool) {
	t.Helper()
	m := &domain.Message{ID: id, RecipientUserID: recipient, Text: "mensagem " + id, Timestamp: at, UpdatedAt: at, Read: read}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("seed message %s: %v", id, err)
	}
}
