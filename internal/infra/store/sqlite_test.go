package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tizenorg/wfd-manager/internal/domain/session"
	"github.com/tizenorg/wfd-manager/internal/domain/session/sessiontest"
	"github.com/tizenorg/wfd-manager/internal/infra/store"
)

var _ session.Store = (*store.DB)(nil)

func openDB(t *testing.T) (*store.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "settings.db")
	db := store.NewDB(path)
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	return db, path
}

func TestNewDB_DefaultPath(t *testing.T) {
	db := store.NewDB("")
	if db.Path() != store.DefaultDBPath {
		t.Errorf("expected default path %q, got %q", store.DefaultDBPath, db.Path())
	}
}

func TestDBOpenClose(t *testing.T) {
	db, path := openDB(t)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("Database file should exist after Open()")
	}
	if err := db.Close(); err != nil {
		t.Errorf("Failed to close database: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}
	if _, _, err := db.Get("k"); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}

func TestDBGetSet(t *testing.T) {
	db, _ := openDB(t)
	defer db.Close()

	if _, ok, err := db.Get(session.KeyGroupOwnerIntent); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := db.Set(session.KeyGroupOwnerIntent, "7"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := db.Set(session.KeyGroupOwnerIntent, "12"); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	v, ok, err := db.Get(session.KeyGroupOwnerIntent)
	if err != nil || !ok {
		t.Fatalf("expected key present, got ok=%v err=%v", ok, err)
	}
	if v != "12" {
		t.Errorf("expected 12, got %q", v)
	}
}

func TestDBPersistsAcrossReopen(t *testing.T) {
	db, path := openDB(t)
	if err := db.Set(session.KeyDeviceName, "Living Room"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	db.Close()

	reopened := store.NewDB(path)
	if err := reopened.Open(); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	v, ok, err := reopened.Get(session.KeyDeviceName)
	if err != nil || !ok || v != "Living Room" {
		t.Errorf("expected persisted name, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestDBDeleteAndAll(t *testing.T) {
	db, _ := openDB(t)
	defer db.Close()

	db.Set("a", "1")
	db.Set("b", "2")
	if err := db.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := db.Delete("missing"); err != nil {
		t.Errorf("Deleting a missing key should succeed, got %v", err)
	}

	all, err := db.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 1 || all["b"] != "2" {
		t.Errorf("expected only b=2, got %v", all)
	}
}

func TestDBBacksSession(t *testing.T) {
	db, _ := openDB(t)
	defer db.Close()
	db.Set(session.KeyMaxClients, "3")

	s := session.New(sessiontest.NewTransport(1), db, session.DefaultConfig())
	defer s.Close()

	if got := s.MaxClients(); got != 3 {
		t.Errorf("expected max clients loaded from store, got %d", got)
	}
}
