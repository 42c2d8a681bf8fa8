package keyring

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestPasswordLifecycle(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "personal.kdbx")

	if HasPassword(path) {
		t.Fatal("fresh keyring should be empty")
	}
	if _, err := GetPassword(path); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := SavePassword(path, "demopass"); err != nil {
		t.Fatalf("SavePassword failed: %v", err)
	}
	got, err := GetPassword(path)
	if err != nil || got != "demopass" {
		t.Errorf("GetPassword = %q, %v", got, err)
	}

	// Relative and absolute spellings address the same vault
	wd, _ := os.Getwd()
	rel, err := filepath.Rel(wd, path)
	if err == nil && !HasPassword(rel) {
		t.Error("relative path should resolve to the same account")
	}

	if err := DeletePassword(path); err != nil {
		t.Fatalf("DeletePassword failed: %v", err)
	}
	if err := DeletePassword(path); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}
