package config

import (
	"errors"
	"log/slog"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RESEND_API_KEY", "re_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transport != TransportStdio || cfg.Port != 3000 || cfg.Path != "/mcp" || cfg.Host != "127.0.0.1" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.BaseURL != "https://api.resend.com" {
		t.Fatalf("base url default = %q", cfg.BaseURL)
	}
	if cfg.SessionHost != SessionHostMemory || !cfg.MetricsEnabled() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MCP_TRANSPORT", "http")
	t.Setenv("MCP_PORT", "8080")
	t.Setenv("SENDER_EMAIL_ADDRESS", "me@example.com")
	t.Setenv("REPLY_TO_EMAIL_ADDRESSES", "a@example.com, b@example.com,,")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MCP_METRICS_PATH", MetricsDisabled)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	rt := cfg.ReplyTo()
	if len(rt) != 2 || rt[0] != "a@example.com" || rt[1] != "b@example.com" {
		t.Fatalf("reply-to = %v", rt)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("log level = %v", cfg.SlogLevel())
	}
	if cfg.MetricsEnabled() {
		t.Fatalf("metrics should be disabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Transport:   TransportHTTP,
		Host:        "127.0.0.1",
		Port:        3000,
		Path:        "/mcp",
		LogLevel:    "info",
		LogFormat:   "text",
		SessionHost: SessionHostMemory,
		MetricsPath: "/metrics",
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"http without key", func(c *Config) {}, true},
		{"stdio without key", func(c *Config) { c.Transport = TransportStdio }, false},
		{"stdio with key", func(c *Config) { c.Transport = TransportStdio; c.APIKey = "re_x" }, true},
		{"unknown transport", func(c *Config) { c.Transport = "websocket" }, false},
		{"port zero", func(c *Config) { c.Port = 0 }, false},
		{"port too high", func(c *Config) { c.Port = 70000 }, false},
		{"relative path", func(c *Config) { c.Path = "mcp" }, false},
		{"metrics clash", func(c *Config) { c.MetricsPath = "/mcp" }, false},
		{"bad sender", func(c *Config) { c.SenderEmail = "nobody" }, false},
		{"bad reply-to", func(c *Config) { c.ReplyToList = "ok@example.com,nope" }, false},
		{"redis host", func(c *Config) { c.SessionHost = SessionHostRedis }, true},
		{"unknown host", func(c *Config) { c.SessionHost = "etcd" }, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"json format", func(c *Config) { c.LogFormat = "json" }, true},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("want ok, got %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatalf("want error, got nil")
				}
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("want ErrInvalid, got %v", err)
				}
			}
		})
	}
}
