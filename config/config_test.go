package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := NewConfig()
	cfg.App.ID = "com.example.test"
	return cfg
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Transport.MaxMessageSize != DefaultMaxMessageSize {
		t.Errorf("MaxMessageSize = %d, want %d", cfg.Transport.MaxMessageSize, DefaultMaxMessageSize)
	}
	if cfg.Transport.KeepAliveInterval.Duration() != 30*time.Second {
		t.Errorf("KeepAliveInterval = %v, want 30s", cfg.Transport.KeepAliveInterval)
	}
	if cfg.Heartbeat.Interval.Duration() != 30*time.Second {
		t.Errorf("Heartbeat.Interval = %v, want 30s", cfg.Heartbeat.Interval)
	}
	if cfg.Heartbeat.MaxMissed != 3 {
		t.Errorf("Heartbeat.MaxMissed = %d, want 3", cfg.Heartbeat.MaxMissed)
	}
	if cfg.Buffers.ChangeBuffer != 16 || cfg.Buffers.EventBuffer != 64 {
		t.Errorf("Buffers = %+v, want {16 64}", cfg.Buffers)
	}
	if !cfg.Discovery.Enabled || cfg.Discovery.Service != "default-sync" {
		t.Errorf("Discovery = %+v, want enabled with service %q", cfg.Discovery, "default-sync")
	}
	if cfg.Transport.Port != DefaultPort {
		t.Errorf("Transport.Port = %d, want %d", cfg.Transport.Port, DefaultPort)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing app id",
			mutate:  func(c *Config) { c.App.ID = "" },
			wantErr: "app id",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Transport.Port = 70000 },
			wantErr: "port",
		},
		{
			name:    "max message too small",
			mutate:  func(c *Config) { c.Transport.MaxMessageSize = 1024 },
			wantErr: "64 KiB",
		},
		{
			name:    "zero heartbeat interval",
			mutate:  func(c *Config) { c.Heartbeat.Interval = 0 },
			wantErr: "heartbeat interval",
		},
		{
			name:    "zero max missed",
			mutate:  func(c *Config) { c.Heartbeat.MaxMissed = 0 },
			wantErr: "max missed",
		},
		{
			name:    "empty discovery service",
			mutate:  func(c *Config) { c.Discovery.Service = "" },
			wantErr: "service name",
		},
		{
			name: "disabled discovery skips service check",
			mutate: func(c *Config) {
				c.Discovery.Enabled = false
				c.Discovery.Service = ""
			},
		},
		{
			name:    "zero change buffer",
			mutate:  func(c *Config) { c.Buffers.ChangeBuffer = 0 },
			wantErr: "change buffer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	cfg := validConfig()
	cfg.Transport.Port = 7655
	cfg.Transport.KeepAliveInterval = Duration(45 * time.Second)
	cfg.App.Capabilities = map[string]string{"notes.read": "v1", "notes.write": "v1"}

	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	loaded, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if loaded.App.ID != cfg.App.ID {
		t.Errorf("App.ID = %q, want %q", loaded.App.ID, cfg.App.ID)
	}
	if loaded.Transport.Port != 7655 {
		t.Errorf("Transport.Port = %d, want 7655", loaded.Transport.Port)
	}
	if loaded.Transport.KeepAliveInterval.Duration() != 45*time.Second {
		t.Errorf("KeepAliveInterval = %v, want 45s", loaded.Transport.KeepAliveInterval)
	}
	if len(loaded.App.Capabilities) != 2 {
		t.Errorf("Capabilities = %v, want 2 entries", loaded.App.Capabilities)
	}
}

func TestFromJSONDurationString(t *testing.T) {
	data := []byte(`{
		"app": {"id": "com.example.test"},
		"heartbeat": {"interval": "10s", "max_missed": 2}
	}`)

	cfg, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if cfg.Heartbeat.Interval.Duration() != 10*time.Second {
		t.Errorf("Interval = %v, want 10s", cfg.Heartbeat.Interval)
	}
	if cfg.Heartbeat.MaxMissed != 2 {
		t.Errorf("MaxMissed = %d, want 2", cfg.Heartbeat.MaxMissed)
	}
	// 未出现的字段保持默认
	if cfg.Transport.MaxMessageSize != DefaultMaxMessageSize {
		t.Errorf("MaxMessageSize = %d, want default", cfg.Transport.MaxMessageSize)
	}
}

func TestFromJSONRejectsInvalid(t *testing.T) {
	if _, err := FromJSON([]byte(`{"app": {"id": ""}}`)); err == nil {
		t.Error("FromJSON accepted config without app id")
	}
	if _, err := FromJSON([]byte(`not json`)); err == nil {
		t.Error("FromJSON accepted malformed json")
	}
}
