// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	SessionHostMemory = "memory"
	SessionHostRedis  = "redis"

	// MetricsDisabled as MCP_METRICS_PATH turns the metrics endpoint off.
	MetricsDisabled = "off"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the process configuration. Fields are populated from the
// environment by Load and may then be overridden by command line flags.
type Config struct {
	APIKey      string `env:"RESEND_API_KEY"`
	SenderEmail string `env:"SENDER_EMAIL_ADDRESS"`
	// ReplyToList is the raw comma separated REPLY_TO_EMAIL_ADDRESSES value.
	ReplyToList string `env:"REPLY_TO_EMAIL_ADDRESSES"`

	Transport string `env:"MCP_TRANSPORT,default=stdio"`
	Host      string `env:"MCP_HOST,default=127.0.0.1"`
	Port      int    `env:"MCP_PORT,default=3000"`
	Path      string `env:"MCP_PATH,default=/mcp"`

	BaseURL string `env:"RESEND_BASE_URL,default=https://api.resend.com"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`

	SessionHost string `env:"MCP_SESSION_HOST,default=memory"`
	RedisAddr   string `env:"REDIS_ADDR,default=localhost:6379"`

	MetricsPath     string        `env:"MCP_METRICS_PATH,default=/metrics"`
	ShutdownTimeout time.Duration `env:"MCP_SHUTDOWN_TIMEOUT,default=10s"`
}

// Load decodes Config from the environment. It does not validate.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

// ReplyTo splits ReplyToList on commas, dropping blanks.
func (c Config) ReplyTo() []string {
	var out []string
	for _, s := range strings.FieldsFunc(c.ReplyToList, func(r rune) bool { return r == ',' || r == ';' }) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Addr is the listen address for the HTTP transport.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MetricsEnabled reports whether the metrics endpoint should be served.
func (c Config) MetricsEnabled() bool {
	return c.MetricsPath != "" && c.MetricsPath != MetricsDisabled
}

// SlogLevel parses LogLevel. Validate rejects values it cannot parse.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Validate reports the first problem found.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportStdio:
		if strings.TrimSpace(c.APIKey) == "" {
			return fmt.Errorf("%w: the stdio transport needs an API key (RESEND_API_KEY or --key)", ErrInvalid)
		}
	case TransportHTTP:
	default:
		return fmt.Errorf("%w: unknown transport %q (want %s or %s)", ErrInvalid, c.Transport, TransportStdio, TransportHTTP)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Port)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("%w: path %q must start with /", ErrInvalid, c.Path)
	}
	if c.MetricsEnabled() && (!strings.HasPrefix(c.MetricsPath, "/") || c.MetricsPath == c.Path) {
		return fmt.Errorf("%w: metrics path %q must start with / and differ from the MCP path", ErrInvalid, c.MetricsPath)
	}
	if c.SenderEmail != "" && !strings.Contains(c.SenderEmail, "@") {
		return fmt.Errorf("%w: sender %q is not an email address", ErrInvalid, c.SenderEmail)
	}
	for _, addr := range c.ReplyTo() {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("%w: reply-to %q is not an email address", ErrInvalid, addr)
		}
	}
	switch c.SessionHost {
	case SessionHostMemory, SessionHostRedis:
	default:
		return fmt.Errorf("%w: unknown session host %q", ErrInvalid, c.SessionHost)
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("%w: log level: %v", ErrInvalid, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q (want text or json)", ErrInvalid, c.LogFormat)
	}
	return nil
}
