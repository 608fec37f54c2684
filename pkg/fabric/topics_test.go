package fabric

import "testing"

func TestCommandTopicUsesCmdSegment(t *testing.T) {
	got := commandTopic("tenant-1", "AA:BB:CC:DD:EE:FF", "reboot")
	want := "tenant/tenant-1/device/AA:BB:CC:DD:EE:FF/cmd/reboot"
	if got != want {
		t.Errorf("commandTopic() = %q, want %q", got, want)
	}
}

func TestParseTopic(t *testing.T) {
	cases := []struct {
		topic string
		want  parsedTopic
		ok    bool
	}{
		{"tenant/t1/device/AA:BB:CC:DD:EE:FF/status", parsedTopic{"t1", "AA:BB:CC:DD:EE:FF", "status"}, true},
		{"tenant/t1/device/AA:BB:CC:DD:EE:FF/ota/progress", parsedTopic{"t1", "AA:BB:CC:DD:EE:FF", "ota/progress"}, true},
		{"server/status", parsedTopic{}, false},
		{"tenant/t1/device/AA:BB:CC:DD:EE:FF", parsedTopic{}, false},
	}
	for _, c := range cases {
		got, ok := parseTopic(c.topic)
		if ok != c.ok {
			t.Errorf("parseTopic(%q) ok = %v, want %v", c.topic, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("parseTopic(%q) = %+v, want %+v", c.topic, got, c.want)
		}
	}
}
