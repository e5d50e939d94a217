package repo

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-kala-backend/internal/config"
	"github.com/tbourn/go-kala-backend/internal/domain"
)

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "kala.db")
	if db, err := OpenSQLite(path); err == nil || db != nil {
		t.Fatalf("OpenSQLite(%q) = %v, %v; want error", path, db, err)
	}
}

func TestOpenSQLite_FileDatabaseIsTuned(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "kala.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	pragmas := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"foreign_keys": "1",
		"busy_timeout": "5000",
	}
	for name, want := range pragmas {
		var got string
		if err := db.Raw("PRAGMA " + name + ";").Row().Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", name, err)
		}
		if strings.ToLower(got) != want {
			t.Fatalf("PRAGMA %s = %q; want %q", name, got, want)
		}
	}
	if n := sqlDB.Stats().MaxOpenConnections; n != 10 {
		t.Fatalf("MaxOpenConnections = %d; want 10", n)
	}
}

func TestAutoMigrate_SchemaGuardsInbox(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "kala.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&domain.User{}, &domain.Message{}, &domain.Subscription{}, &domain.Payment{}, &domain.Identity{}, &domain.Idempotency{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("missing table for %T", tbl)
		}
	}

	ctx := context.Background()
	ana := &domain.User{Email: "ana@kala.ao", Username: "ana_luanda", DisplayName: "Ana"}
	if err := CreateUser(ctx, db, ana); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// message_count can never go negative.
	err = db.Model(&domain.User{}).Where("id = ?", ana.ID).UpdateColumn("message_count", -1).Error
	if err == nil {
		t.Fatalf("negative message_count accepted")
	}

	// usernames and emails are unique.
	twin := &domain.User{Email: "outra@kala.ao", Username: "ana_luanda"}
	if err := CreateUser(ctx, db, twin); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate username: got %v, want ErrDuplicate", err)
	}
	twin = &domain.User{Email: "ana@kala.ao", Username: "ana_2"}
	if err := CreateUser(ctx, db, twin); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate email: got %v, want ErrDuplicate", err)
	}

	msg, err := CreateMessage(ctx, db, ana.ID, "ola, tudo bem contigo?", time.Now().UTC())
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if msg.Read || msg.RecipientUserID != ana.ID {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestOpen_DispatchesOnDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kala.db")
	db, err := Open(config.DBConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}

	if _, err := Open(config.DBConfig{Driver: "mongo"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestEnableTracing_RegistersPlugin(t *testing.T) {
	db := newRepoDB(t)
	if err := EnableTracing(db); err != nil {
		t.Fatalf("EnableTracing: %v", err)
	}
	if len(db.Config.Plugins) == 0 {
		t.Fatalf("expected tracing plugin to be registered")
	}
}

// Compile-time guard to ensure signature stability.
var _ func(string) (*gorm.DB, error) = OpenSQLite
