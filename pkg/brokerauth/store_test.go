package brokerauth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPasswordFileStoreUpsertAndUsernames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")

	s, err := NewPasswordFileStore(path, "")
	if err != nil {
		t.Fatalf("NewPasswordFileStore: %v", err)
	}

	if err := s.Upsert("AA:BB:CC:DD:EE:FF", "secret1"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert("11:22:33:44:55:66", "secret2"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	usernames, err := s.Usernames()
	if err != nil {
		t.Fatalf("Usernames: %v", err)
	}
	if len(usernames) != 2 {
		t.Fatalf("Usernames() = %v, want 2 entries", usernames)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading password file: %v", err)
	}
	if string(data) == "" {
		t.Fatal("expected non-empty password file after upsert")
	}
}

func TestPasswordFileStoreDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")

	s, err := NewPasswordFileStore(path, "")
	if err != nil {
		t.Fatalf("NewPasswordFileStore: %v", err)
	}

	if err := s.Upsert("AA:BB:CC:DD:EE:FF", "secret1"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Delete("AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	usernames, err := s.Usernames()
	if err != nil {
		t.Fatalf("Usernames: %v", err)
	}
	if len(usernames) != 0 {
		t.Fatalf("Usernames() after delete = %v, want empty", usernames)
	}
}

func TestPasswordFileStoreLoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")

	if err := os.WriteFile(path, []byte("AA:BB:CC:DD:EE:FF existing\n"), 0600); err != nil {
		t.Fatalf("seeding password file: %v", err)
	}

	s, err := NewPasswordFileStore(path, "")
	if err != nil {
		t.Fatalf("NewPasswordFileStore: %v", err)
	}

	usernames, err := s.Usernames()
	if err != nil {
		t.Fatalf("Usernames: %v", err)
	}
	if len(usernames) != 1 || usernames[0] != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("Usernames() = %v, want one entry for the seeded MAC", usernames)
	}
}

func TestPasswordFileStoreReloadNoCommandIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")

	s, err := NewPasswordFileStore(path, "")
	if err != nil {
		t.Fatalf("NewPasswordFileStore: %v", err)
	}
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload with empty command should be a no-op, got %v", err)
	}
}
