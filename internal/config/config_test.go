package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	tests := []struct {
		name  string
		check func(*Config) bool
	}{
		{"default mode is fabric", func(c *Config) bool { return c.Mode == "fabric" }},
		{"default host is 0.0.0.0", func(c *Config) bool { return c.Host == "0.0.0.0" }},
		{"default port is 8080", func(c *Config) bool { return c.Port == 8080 }},
		{"default log level is info", func(c *Config) bool { return c.LogLevel == "info" }},
		{"default log format is json", func(c *Config) bool { return c.LogFormat == "json" }},
		{"listen addr format", func(c *Config) bool { return c.ListenAddr() == "0.0.0.0:8080" }},
		{"default escalation tick is 1m", func(c *Config) bool { return c.Escal.TickInterval == time.Minute }},
		{"default escalation batch limit is 100", func(c *Config) bool { return c.Escal.BatchLimit == 100 }},
		{"default broker reconcile interval is 5m", func(c *Config) bool { return c.Broker.ReconcileInterval == 5*time.Minute }},
		{"default broker debounce window is 2s", func(c *Config) bool { return c.Broker.DebounceWindow == 2*time.Second }},
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("default check failed: %s", tt.name)
			}
		})
	}
}
