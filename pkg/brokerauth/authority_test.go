package brokerauth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu         sync.Mutex
	credential map[string]string
	reloads    int
	reloadErr  error
	upsertErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{credential: make(map[string]string)}
}

func (f *fakeStore) Upsert(username, passwordPlain string) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credential[username] = passwordPlain
	return nil
}

func (f *fakeStore) Delete(username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.credential, username)
	return nil
}

func (f *fakeStore) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return f.reloadErr
}

func (f *fakeStore) Usernames() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.credential))
	for u := range f.credential {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeStore) reloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads
}

func TestAuthorityUpsertDebouncesReload(t *testing.T) {
	store := newFakeStore()
	a := NewAuthority(store, 20*time.Millisecond, slog.Default())

	for i := 0; i < 5; i++ {
		if err := a.UpsertCredential(context.Background(), "AA:BB:CC:DD:EE:FF", "secret"); err != nil {
			t.Fatalf("UpsertCredential: %v", err)
		}
	}

	time.Sleep(60 * time.Millisecond)

	if got := store.reloadCount(); got != 1 {
		t.Errorf("reload count = %d, want 1 (debounced)", got)
	}
}

func TestAuthorityForceReloadIsImmediate(t *testing.T) {
	store := newFakeStore()
	a := NewAuthority(store, time.Hour, slog.Default())

	if err := a.ForceReload(); err != nil {
		t.Fatalf("ForceReload: %v", err)
	}
	if got := store.reloadCount(); got != 1 {
		t.Errorf("reload count = %d, want 1", got)
	}
}

func TestAuthorityUpsertRetriesThenFails(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("broker unavailable")
	a := NewAuthority(store, time.Hour, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := a.UpsertCredential(ctx, "AA:BB:CC:DD:EE:FF", "secret"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
}
