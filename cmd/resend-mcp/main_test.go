package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/resend-mcp-go/internal/config"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RESEND_API_KEY", "SENDER_EMAIL_ADDRESS", "REPLY_TO_EMAIL_ADDRESSES", "MCP_TRANSPORT",
		"MCP_HOST", "MCP_PORT", "MCP_PATH", "LOG_LEVEL", "LOG_FORMAT", "MCP_SESSION_HOST", "MCP_METRICS_PATH",
	} {
		// Setenv restores the old value on cleanup; Unsetenv makes it absent.
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCP_PORT", "4000")
	t.Setenv("SENDER_EMAIL_ADDRESS", "env@example.com")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a := &app{}
	cmd := a.command()
	if err := cmd.ParseFlags([]string{"--http", "--port", "5000", "--reply-to", "a@example.com,b@example.com", "--log-format", "json"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if err := applyFlags(&cfg, cmd.Flags()); err != nil {
		t.Fatalf("apply flags: %v", err)
	}

	if cfg.Transport != config.TransportHTTP {
		t.Fatalf("want transport http, got %q", cfg.Transport)
	}
	if cfg.Port != 5000 {
		t.Fatalf("want port 5000, got %d", cfg.Port)
	}
	if cfg.SenderEmail != "env@example.com" {
		t.Fatalf("want sender from env, got %q", cfg.SenderEmail)
	}
	if got := strings.Join(cfg.ReplyTo(), ","); got != "a@example.com,b@example.com" {
		t.Fatalf("want reply-to from flag, got %q", got)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("want log format json, got %q", cfg.LogFormat)
	}
}

func TestStdioWithoutKeyFails(t *testing.T) {
	clearEnv(t)

	a := &app{stderr: &syncBuffer{}, log: slog.New(slog.DiscardHandler)}
	cmd := a.command()
	cmd.SetArgs([]string{})
	err := cmd.ExecuteContext(t.Context())
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, config.Config{LogLevel: "warn", LogFormat: "json"})

	log.Info("dropped")
	log.Warn("kept", slog.String("k", "v"))

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record passed a warn level logger: %s", out)
	}
	if !strings.Contains(out, `"msg":"kept"`) || !strings.Contains(out, `"k":"v"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestHTTPServeAndGracefulShutdown(t *testing.T) {
	clearEnv(t)
	port := freePort(t)

	stderr := &syncBuffer{}
	a := &app{stderr: stderr, log: slog.New(slog.DiscardHandler)}
	cmd := a.command()
	cmd.SetArgs([]string{"--http", "--port", fmt.Sprint(port), "--metrics-path", "/metrics"})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	var res *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for {
		req, _ := http.NewRequest(http.MethodPost, base+"/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
		req.Header.Set("Content-Type", "application/json")
		var err error
		if res, err = http.DefaultClient.Do(req); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("initialize without bearer: want status 401, got %d", res.StatusCode)
	}

	mres, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	mres.Body.Close()
	if mres.StatusCode != http.StatusOK {
		t.Fatalf("metrics: want status 200, got %d", mres.StatusCode)
	}

	if out := stderr.String(); !strings.Contains(out, "listening on") || !strings.Contains(out, fmt.Sprintf(":%d/mcp", port)) {
		t.Fatalf("missing startup line in %q", out)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("want clean exit on shutdown, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
