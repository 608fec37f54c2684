package notify

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToMax(t *testing.T) {
	rl := NewRateLimiter(map[Channel]RateLimit{
		ChannelSMS: {Max: 3, Window: time.Hour},
	})

	for i := 0; i < 3; i++ {
		if !rl.Allow(ChannelSMS, "+15551234567") {
			t.Fatalf("send %d: expected allowed", i)
		}
	}
	if rl.Allow(ChannelSMS, "+15551234567") {
		t.Fatalf("4th send: expected denied")
	}
}

func TestRateLimiterPerRecipientIsolation(t *testing.T) {
	rl := NewRateLimiter(map[Channel]RateLimit{
		ChannelSMS: {Max: 1, Window: time.Hour},
	})

	if !rl.Allow(ChannelSMS, "a") {
		t.Fatalf("recipient a: expected first send allowed")
	}
	if !rl.Allow(ChannelSMS, "b") {
		t.Fatalf("recipient b: expected first send allowed")
	}
	if rl.Allow(ChannelSMS, "a") {
		t.Fatalf("recipient a: expected second send denied")
	}
}

func TestRateLimiterPerChannelIsolation(t *testing.T) {
	rl := NewRateLimiter(map[Channel]RateLimit{
		ChannelSMS:   {Max: 1, Window: time.Hour},
		ChannelEmail: {Max: 1, Window: time.Hour},
	})

	if !rl.Allow(ChannelSMS, "x@example.com") {
		t.Fatalf("sms: expected first send allowed")
	}
	if !rl.Allow(ChannelEmail, "x@example.com") {
		t.Fatalf("email: expected first send allowed despite sms limit hit")
	}
}

func TestRateLimiterUnboundedChannelAlwaysAllows(t *testing.T) {
	rl := NewRateLimiter(map[Channel]RateLimit{
		ChannelSMS: {Max: 1, Window: time.Hour},
	})

	for i := 0; i < 10; i++ {
		if !rl.Allow(ChannelPush, "user-1") {
			t.Fatalf("send %d: push channel has no configured limit, expected allowed", i)
		}
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := NewRateLimiter(map[Channel]RateLimit{
		ChannelSMS: {Max: 1, Window: 10 * time.Millisecond},
	})

	if !rl.Allow(ChannelSMS, "a") {
		t.Fatalf("expected first send allowed")
	}
	if rl.Allow(ChannelSMS, "a") {
		t.Fatalf("expected immediate second send denied")
	}

	time.Sleep(20 * time.Millisecond)

	if !rl.Allow(ChannelSMS, "a") {
		t.Fatalf("expected send allowed after window elapsed")
	}
}

func TestDefaultRateLimitsMatchesSpec(t *testing.T) {
	limits := DefaultRateLimits()

	sms, ok := limits[ChannelSMS]
	if !ok || sms.Max != 5 || sms.Window != time.Hour {
		t.Fatalf("sms limit = %+v, ok=%v, want Max=5 Window=1h", sms, ok)
	}

	email, ok := limits[ChannelEmail]
	if !ok || email.Max != 10 || email.Window != time.Hour {
		t.Fatalf("email limit = %+v, ok=%v, want Max=10 Window=1h", email, ok)
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	push := NewSlackPush("", "", nil)
	reg.Register(push)

	got, err := reg.Get(ChannelPush)
	if err != nil {
		t.Fatalf("Get: unexpected error %v", err)
	}
	if got != push {
		t.Fatalf("Get returned a different provider than registered")
	}

	if _, err := reg.Get(ChannelSMS); err == nil {
		t.Fatalf("Get(sms): expected error for unregistered channel")
	}
}
