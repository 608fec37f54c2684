package escalation

// DeviceSignal describes the buzzer/LED pattern an escalation level
// commands the device to display.
type DeviceSignal struct {
	Level   int    `json:"level"`
	Buzzer  string `json:"buzzer"`
	LED     string `json:"led"`
}

var deviceSignals = map[int]DeviceSignal{
	1: {Level: 1, Buzzer: "off", LED: "solid_red"},
	2: {Level: 2, Buzzer: "single_beep", LED: "slow_blink"},
	3: {Level: 3, Buzzer: "triple_beep", LED: "fast_blink"},
	4: {Level: 4, Buzzer: "continuous_short", LED: "rapid_blink"},
	5: {Level: 5, Buzzer: "continuous", LED: "rapid_flash"},
}

// SignalForLevel returns the device command payload for an escalation
// level, clamped to the valid 1-5 range.
func SignalForLevel(level int) DeviceSignal {
	if level < 1 {
		level = 1
	}
	if level > 5 {
		level = 5
	}
	return deviceSignals[level]
}
