// Command resend-mcp serves the Resend email platform as MCP tools over
// stdio or Streamable HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joeshaw/envdecode"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ggoodman/resend-mcp-go/internal/config"
	"github.com/ggoodman/resend-mcp-go/internal/logctx"
	"github.com/ggoodman/resend-mcp-go/internal/metrics"
	"github.com/ggoodman/resend-mcp-go/mcpservice"
	"github.com/ggoodman/resend-mcp-go/resend"
	"github.com/ggoodman/resend-mcp-go/resendtools"
	"github.com/ggoodman/resend-mcp-go/sessions"
	"github.com/ggoodman/resend-mcp-go/sessions/memoryhost"
	"github.com/ggoodman/resend-mcp-go/sessions/redishost"
	"github.com/ggoodman/resend-mcp-go/stdio"
	"github.com/ggoodman/resend-mcp-go/streaminghttp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &app{stderr: os.Stderr, log: slog.New(slog.NewTextHandler(os.Stderr, nil))}
	if err := app.command().ExecuteContext(ctx); err != nil {
		app.log.Error("process.fatal", slog.String("err", err.Error()))
		stop()
		os.Exit(1)
	}
}

type app struct {
	stderr io.Writer
	log    *slog.Logger
}

func (a *app) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "resend-mcp",
		Short:         "Expose the Resend email API as MCP tools",
		Long:          "resend-mcp serves the Resend email API as MCP tools. By default it speaks MCP over stdio using RESEND_API_KEY; with --http it serves many clients, each authenticating with its own key as a bearer token.",
		Version:       resendtools.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}
	registerFlags(cmd.Flags())
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := applyFlags(&cfg, cmd.Flags()); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		a.log = newLogger(a.stderr, cfg)
		return a.run(cmd.Context(), cfg)
	}
	return cmd
}

func registerFlags(fs *pflag.FlagSet) {
	fs.Bool("http", false, "serve Streamable HTTP instead of stdio (MCP_TRANSPORT=http)")
	fs.String("host", "", "HTTP listen host (MCP_HOST)")
	fs.Int("port", 0, "HTTP listen port (MCP_PORT)")
	fs.String("path", "", "HTTP endpoint path (MCP_PATH)")
	fs.String("key", "", "Resend API key for stdio mode (RESEND_API_KEY)")
	fs.String("sender", "", "default sender address (SENDER_EMAIL_ADDRESS)")
	fs.StringSlice("reply-to", nil, "default reply-to addresses (REPLY_TO_EMAIL_ADDRESSES)")
	fs.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	fs.String("log-format", "", "text or json (LOG_FORMAT)")
	fs.String("session-host", "", "memory or redis (MCP_SESSION_HOST)")
	fs.String("redis-addr", "", "Redis address for the redis session host (REDIS_ADDR)")
	fs.String("metrics-path", "", `metrics endpoint path, or "off" (MCP_METRICS_PATH)`)
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cfg *config.Config, fs *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetString(name)
		}
	}

	if fs.Changed("http") {
		on, ferr := fs.GetBool("http")
		if ferr != nil {
			return ferr
		}
		if on {
			cfg.Transport = config.TransportHTTP
		} else {
			cfg.Transport = config.TransportStdio
		}
	}
	if fs.Changed("port") {
		if cfg.Port, err = fs.GetInt("port"); err != nil {
			return err
		}
	}
	if fs.Changed("reply-to") {
		list, ferr := fs.GetStringSlice("reply-to")
		if ferr != nil {
			return ferr
		}
		cfg.ReplyToList = strings.Join(list, ",")
	}
	str("host", &cfg.Host)
	str("path", &cfg.Path)
	str("key", &cfg.APIKey)
	str("sender", &cfg.SenderEmail)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("session-host", &cfg.SessionHost)
	str("redis-addr", &cfg.RedisAddr)
	str("metrics-path", &cfg.MetricsPath)
	return err
}

// newLogger writes to w, never stdout, which stdio mode reserves for frames.
func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(logctx.Handler{Handler: h})
}

func (a *app) clientOptions(cfg config.Config) []resend.Option {
	return []resend.Option{
		resend.WithBaseURL(cfg.BaseURL),
		resend.WithLogger(a.log),
		resend.WithUserAgent(resendtools.ServerName + "/" + resendtools.Version),
	}
}

func toolOptions(cfg config.Config) resendtools.Options {
	return resendtools.Options{SenderEmail: cfg.SenderEmail, ReplyTo: cfg.ReplyTo()}
}

func (a *app) run(ctx context.Context, cfg config.Config) error {
	if cfg.Transport == config.TransportStdio {
		return a.runStdio(ctx, cfg)
	}
	return a.runHTTP(ctx, cfg)
}

func (a *app) runStdio(ctx context.Context, cfg config.Config) error {
	client := resend.NewClient(cfg.APIKey, a.clientOptions(cfg)...)
	srv := resendtools.NewServer(client, toolOptions(cfg), mcpservice.WithLogger(a.log))
	a.log.Info("process.start", slog.String("transport", config.TransportStdio), slog.String("version", resendtools.Version))
	return stdio.NewHandler(srv, stdio.WithLogger(a.log)).Serve(ctx)
}

func (a *app) sessionHost(ctx context.Context, cfg config.Config) (sessions.Host, func(), error) {
	if cfg.SessionHost != config.SessionHostRedis {
		return memoryhost.New(), func() {}, nil
	}
	var rcfg redishost.Config
	if err := envdecode.Decode(&rcfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, nil, fmt.Errorf("decode redis config: %w", err)
	}
	rcfg.RedisAddr = cfg.RedisAddr
	host, err := redishost.New(ctx, rcfg)
	if err != nil {
		return nil, nil, err
	}
	return host, func() { _ = host.Close() }, nil
}

func (a *app) runHTTP(ctx context.Context, cfg config.Config) error {
	host, closeHost, err := a.sessionHost(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeHost()

	opts := []streaminghttp.Option{
		streaminghttp.WithLogger(a.log),
		streaminghttp.WithEndpointPath(cfg.Path),
		streaminghttp.WithSessionHost(host),
		streaminghttp.WithToolOptions(toolOptions(cfg)),
		streaminghttp.WithClientFactory(func(credential string) *resend.Client {
			return resend.NewClient(credential, a.clientOptions(cfg)...)
		}),
	}
	if cfg.MetricsEnabled() {
		opts = append(opts, streaminghttp.WithMetrics(metrics.New()), streaminghttp.WithMetricsPath(cfg.MetricsPath))
	}
	h := streaminghttp.New(opts...)

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}
	a.log.Info("process.start",
		slog.String("transport", config.TransportHTTP),
		slog.String("version", resendtools.Version),
		slog.String("session_host", cfg.SessionHost),
	)
	color.New(color.FgGreen).Fprint(a.stderr, "▶ ")
	fmt.Fprintf(a.stderr, "%s listening on %s\n", resendtools.ServerName, color.CyanString("http://%s%s", ln.Addr(), h.EndpointPath()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("process.shutdown.start", slog.Int("sessions", h.Registry().Len()))
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := h.Shutdown(sctx); err != nil {
			// A slow drain still ends in a clean exit; sessions were force-closed.
			a.log.Warn("process.shutdown.incomplete", slog.String("err", err.Error()))
		}
		a.log.Info("process.shutdown.complete")
		return nil
	})
	return g.Wait()
}
