package audit

import (
	"log/slog"
	"testing"
)

func TestWriterLogDropsWhenFull(t *testing.T) {
	logger := slog.Default()
	w := NewWriter(nil, logger)
	// Don't start the background goroutine — nothing drains the channel.

	for i := 0; i < bufferSize; i++ {
		w.Log(Entry{DeviceMAC: "AA:BB:CC:DD:EE:FF", Source: "factory_reset"})
	}

	// The next log should be dropped (non-blocking), not deadlock the test.
	w.Log(Entry{DeviceMAC: "AA:BB:CC:DD:EE:FF", Source: "local_ui"})

	if len(w.entries) != bufferSize {
		t.Errorf("buffer size = %d, want %d", len(w.entries), bufferSize)
	}
}

func TestWriterLogEnqueuesEntry(t *testing.T) {
	logger := slog.Default()
	w := NewWriter(nil, logger)

	w.Log(Entry{DeviceMAC: "11:22:33:44:55:66", Source: "mqtt_revoke"})

	entry := <-w.entries
	if entry.DeviceMAC != "11:22:33:44:55:66" {
		t.Errorf("DeviceMAC = %q, want %q", entry.DeviceMAC, "11:22:33:44:55:66")
	}
	if entry.Source != "mqtt_revoke" {
		t.Errorf("Source = %q, want %q", entry.Source, "mqtt_revoke")
	}
}
