package notify

import (
	"context"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/devicefabric/fabric/internal/db"
)

// fakeDBTX records Exec calls and returns empty results for Query/QueryRow.
// It is enough to exercise InsertNotificationLog without a real database.
type fakeDBTX struct {
	execCalls int
}

func (f *fakeDBTX) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execCalls++
	return pgconn.CommandTag{}, nil
}

func (f *fakeDBTX) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (f *fakeDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func TestFanoutNotifyTenantUsersSkipsWithoutPushProvider(t *testing.T) {
	fake := &fakeDBTX{}
	q := db.New(fake)
	f := NewFanout(q, NewRegistry(), NewRateLimiter(DefaultRateLimits()), slog.Default())

	if err := f.NotifyTenantUsers(context.Background(), "tenant-1", db.Alert{}, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.execCalls != 0 {
		t.Errorf("expected no notification log write when no push provider is registered, got %d", fake.execCalls)
	}
}

func TestFanoutNotifyTenantUsersLogsSend(t *testing.T) {
	fake := &fakeDBTX{}
	q := db.New(fake)
	reg := NewRegistry()
	reg.Register(NewSlackPush("", "", slog.Default())) // disabled provider, Send returns nil
	f := NewFanout(q, reg, NewRateLimiter(DefaultRateLimits()), slog.Default())

	if err := f.NotifyTenantUsers(context.Background(), "tenant-1", db.Alert{}, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.execCalls != 1 {
		t.Errorf("expected one notification log write, got %d", fake.execCalls)
	}
}

func TestUrgencyForLevel(t *testing.T) {
	cases := map[int]string{1: "normal", 2: "high", 3: "high", 4: "critical", 5: "critical"}
	for level, want := range cases {
		if got := urgencyForLevel(level); got != want {
			t.Errorf("urgencyForLevel(%d) = %q, want %q", level, got, want)
		}
	}
}
