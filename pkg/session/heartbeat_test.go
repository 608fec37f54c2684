package session

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHeartbeatMapFiresAfterTimeout(t *testing.T) {
	var fired atomic.Bool
	var gotID uuid.UUID

	h := NewHeartbeatMap(slog.Default(), func(_ context.Context, id uuid.UUID) {
		gotID = id
		fired.Store(true)
	})
	h.timeout = 20 * time.Millisecond

	id := uuid.New()
	h.Beat(id)

	if h.TrackedCount() != 1 {
		t.Fatalf("TrackedCount() = %d, want 1", h.TrackedCount())
	}

	deadline := time.Now().Add(time.Second)
	for !fired.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if !fired.Load() {
		t.Fatal("offline callback did not fire within deadline")
	}
	if gotID != id {
		t.Errorf("offline callback got id %v, want %v", gotID, id)
	}
}

func TestHeartbeatMapResetPreventsFire(t *testing.T) {
	var fired atomic.Bool
	h := NewHeartbeatMap(slog.Default(), func(context.Context, uuid.UUID) {
		fired.Store(true)
	})
	h.timeout = 40 * time.Millisecond

	id := uuid.New()
	h.Beat(id)

	// Reset before the timer would fire.
	time.Sleep(15 * time.Millisecond)
	h.Beat(id)
	time.Sleep(15 * time.Millisecond)
	h.Beat(id)

	time.Sleep(10 * time.Millisecond)
	if fired.Load() {
		t.Fatal("offline callback fired despite resets")
	}
}

func TestHeartbeatMapForget(t *testing.T) {
	h := NewHeartbeatMap(slog.Default(), func(context.Context, uuid.UUID) {})
	id := uuid.New()
	h.Beat(id)
	if h.TrackedCount() != 1 {
		t.Fatalf("TrackedCount() = %d, want 1", h.TrackedCount())
	}
	h.Forget(id)
	if h.TrackedCount() != 0 {
		t.Fatalf("TrackedCount() after Forget = %d, want 0", h.TrackedCount())
	}
}

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"low", "low"},
		{"medium", "medium"},
		{"high", "high"},
		{"critical", "critical"},
		{"", "medium"},
		{"bogus", "medium"},
	}
	for _, tt := range tests {
		if got := normalizeSeverity(tt.in); got != tt.want {
			t.Errorf("normalizeSeverity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
