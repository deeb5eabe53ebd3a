package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tcpflood/internal/logger"
)

func validConfig() Config {
	c := DefaultConfig()
	c.Host = "localhost"
	c.Port = 5353
	c.Rate = 100
	c.Connections = 10
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing host", func(c *Config) { c.Host = "" }, true},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"zero rate", func(c *Config) { c.Rate = 0 }, true},
		{"zero connections", func(c *Config) { c.Connections = 0 }, true},
		{"zero new conn rate", func(c *Config) { c.NewConnRate = 0 }, true},
		{"negative duration", func(c *Config) { c.Duration = -time.Second }, true},
		{"zero window", func(c *Config) { c.Window = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestInterval(t *testing.T) {
	tests := []struct {
		connections int
		rate        int
		expected    time.Duration
	}{
		{2, 2, time.Second},         // 1 query/s per connection
		{10, 100, 100 * time.Millisecond},
		{1, 4, 250 * time.Millisecond},
		{1, 10000000, MinInterval}, // clamped, never a zero-length timer
	}

	for _, tt := range tests {
		c := validConfig()
		c.Connections = tt.connections
		c.Rate = tt.rate
		if got := c.Interval(); got != tt.expected {
			t.Errorf("Interval(c=%d, r=%d) = %v, want %v", tt.connections, tt.rate, got, tt.expected)
		}
	}
}

func TestLogLevel(t *testing.T) {
	c := validConfig()
	if got := c.LogLevel(); got != logger.LevelWarn {
		t.Errorf("expected Warn by default, got %s", got)
	}
	c.Verbosity = 2
	if got := c.LogLevel(); got != logger.LevelDebug {
		t.Errorf("expected Debug with -vv, got %s", got)
	}
}

func TestLoadFileYAML(t *testing.T) {
	content := `
target:
  host: dns.example.net
  port: 853
load:
  rate: 500
  connections: 50
  new_connection_rate: 200
  duration: 30s
  window: 16
output:
  print_rtt: true
  stats_addr: ":8080"
`
	path := writeTemp(t, "config.yaml", content)

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	c, err := fc.ToConfig()
	if err != nil {
		t.Fatalf("ToConfig failed: %v", err)
	}

	if c.Host != "dns.example.net" || c.Port != 853 {
		t.Errorf("unexpected target: %s:%d", c.Host, c.Port)
	}
	if c.Rate != 500 || c.Connections != 50 || c.NewConnRate != 200 {
		t.Errorf("unexpected load: %+v", c)
	}
	if c.Duration != 30*time.Second {
		t.Errorf("expected 30s duration, got %v", c.Duration)
	}
	if c.Window != 16 {
		t.Errorf("expected window 16, got %d", c.Window)
	}
	if !c.PrintRTT || c.StatsAddr != ":8080" {
		t.Errorf("unexpected output config: %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadFileJSON(t *testing.T) {
	content := `{"target": {"host": "localhost", "port": 53}, "load": {"rate": 10, "connections": 2}}`
	path := writeTemp(t, "config.json", content)

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	c, err := fc.ToConfig()
	if err != nil {
		t.Fatalf("ToConfig failed: %v", err)
	}

	if c.Host != "localhost" || c.Port != 53 || c.Rate != 10 || c.Connections != 2 {
		t.Errorf("unexpected config: %+v", c)
	}
	// Defaults survive for fields the file omits
	if c.NewConnRate != 1000 {
		t.Errorf("expected default new connection rate 1000, got %d", c.NewConnRate)
	}
	if c.Seed != DefaultSeed {
		t.Errorf("expected default seed %d, got %d", DefaultSeed, c.Seed)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile("does-not-exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeTemp(t, "config.txt", "not a config")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for unsupported format")
	}

	path = writeTemp(t, "bad.yaml", "target: [")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestToConfigInvalidDuration(t *testing.T) {
	fc := &FileConfig{Load: LoadConfig{Duration: "bogus"}}
	if _, err := fc.ToConfig(); err == nil {
		t.Error("expected error for invalid duration string")
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}
