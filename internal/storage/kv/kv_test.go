package kv

import (
	"errors"
	"testing"

	"github.com/pvzzle/txrecorder/internal/storage"

	"github.com/rs/zerolog"
)

func testSlot(t *testing.T, s storage.KV) {
	t.Helper()

	if _, err := s.Get("transactionCount"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set("transactionCount", "7"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get("transactionCount")
	if err != nil || got != "7" {
		t.Fatalf("expected 7, got=%q err=%v", got, err)
	}

	if err := s.Set("transactionCount", "8"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = s.Get("transactionCount")
	if got != "8" {
		t.Fatalf("expected 8, got=%q", got)
	}
}

func TestMemory(t *testing.T) {
	testSlot(t, NewMemory())
}

func TestBadger_InMemory(t *testing.T) {
	db, err := Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	testSlot(t, NewBadger(db, zerolog.Nop()))
}

func TestBadger_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := NewBadger(db, zerolog.Nop()).Set("transactionCount", "42"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	got, err := NewBadger(db, zerolog.Nop()).Get("transactionCount")
	if err != nil || got != "42" {
		t.Fatalf("expected 42 after reopen, got=%q err=%v", got, err)
	}
}
