package escalation

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCurrentLevelNormalPreset(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 1},
		{59 * time.Minute, 1},
		{60 * time.Minute, 2},
		{119 * time.Minute, 2},
		{120 * time.Minute, 3},
		{240 * time.Minute, 4},
		{480 * time.Minute, 5},
		{1000 * time.Minute, 5},
	}
	for _, tt := range tests {
		if got := CurrentLevel(PresetNormal, nil, tt.elapsed); got != tt.want {
			t.Errorf("CurrentLevel(normal, %v) = %d, want %d", tt.elapsed, got, tt.want)
		}
	}
}

func TestCurrentLevelRelaxedSlowerThanAggressive(t *testing.T) {
	elapsed := 90 * time.Minute
	relaxed := CurrentLevel(PresetRelaxed, nil, elapsed)
	aggressive := CurrentLevel(PresetAggressive, nil, elapsed)
	if aggressive <= relaxed {
		t.Errorf("expected aggressive level (%d) > relaxed level (%d) at same elapsed time", aggressive, relaxed)
	}
}

func TestCurrentLevelCustomFallsBackToNormal(t *testing.T) {
	got := CurrentLevel(PresetCustom, nil, 60*time.Minute)
	want := CurrentLevel(PresetNormal, nil, 60*time.Minute)
	if got != want {
		t.Errorf("custom with no overrides = %d, want normal's %d", got, want)
	}
}

func TestCurrentLevelCustomOverride(t *testing.T) {
	custom, _ := json.Marshal(CustomLevels{L2: 10})
	got := CurrentLevel(PresetCustom, custom, 15*time.Minute)
	if got != 2 {
		t.Errorf("CurrentLevel with custom L2=10 at 15min = %d, want 2", got)
	}
}

func TestNextNotificationAtLevel1IsSingleShot(t *testing.T) {
	now := time.Now()
	next := NextNotificationAt(1, now)
	if !next.After(now.Add(24 * time.Hour)) {
		t.Errorf("level 1 NextNotificationAt = %v, want far enough past now that it never comes due again", next)
	}
	if !next.After(now) {
		t.Error("level 1 NextNotificationAt = now or earlier, it would be due again on the next tick")
	}
}

func TestNextNotificationAtDecreasesWithLevel(t *testing.T) {
	now := time.Now()
	l2 := NextNotificationAt(2, now).Sub(now)
	l5 := NextNotificationAt(5, now).Sub(now)
	if l5 >= l2 {
		t.Errorf("expected level 5 interval (%v) < level 2 interval (%v)", l5, l2)
	}
}

func TestSignalForLevelClamps(t *testing.T) {
	if SignalForLevel(0).Level != 1 {
		t.Error("level 0 should clamp to 1")
	}
	if SignalForLevel(99).Level != 5 {
		t.Error("level 99 should clamp to 5")
	}
}

func TestSignalForLevelMatchesTable(t *testing.T) {
	tests := []struct {
		level  int
		buzzer string
		led    string
	}{
		{1, "off", "solid_red"},
		{2, "single_beep", "slow_blink"},
		{3, "triple_beep", "fast_blink"},
		{4, "continuous_short", "rapid_blink"},
		{5, "continuous", "rapid_flash"},
	}
	for _, tt := range tests {
		sig := SignalForLevel(tt.level)
		if sig.Buzzer != tt.buzzer || sig.LED != tt.led {
			t.Errorf("SignalForLevel(%d) = %+v, want buzzer=%q led=%q", tt.level, sig, tt.buzzer, tt.led)
		}
	}
}
