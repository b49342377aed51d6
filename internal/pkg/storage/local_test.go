package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStoragePutAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://localhost:8080/exports/")
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}

	key := "ledger-exports/2026-01-01.csv"
	if err := s.Put(context.Background(), key, strings.NewReader("Date,Type\n"), "text/csv"); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, key))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "Date,Type\n" {
		t.Fatalf("unexpected content %q", data)
	}

	if got := s.GetURL(key); got != "http://localhost:8080/exports/"+key {
		t.Fatalf("unexpected url %q", got)
	}

	if err := s.Delete(context.Background(), key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(context.Background(), key); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
}

func TestLocalStorageKeepsKeysInsideBase(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://x")
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}

	if err := s.Put(context.Background(), "../escape.csv", strings.NewReader("x"), "text/csv"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.csv")); err != nil {
		t.Fatalf("expected file inside base dir: %v", err)
	}
}
