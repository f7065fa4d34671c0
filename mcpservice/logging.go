package mcpservice

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ggoodman/resend-mcp-go/mcp"
)

// ErrInvalidLoggingLevel indicates the provided level is not one of the
// protocol-defined LoggingLevel values.
var ErrInvalidLoggingLevel = errors.New("invalid logging level")

// ClientLogger delivers log records to the connected client as
// notifications/message.
type ClientLogger interface {
	Log(ctx context.Context, level mcp.LoggingLevel, data any) error
}

type clientLoggerKey struct{}

// WithClientLogger attaches a ClientLogger to ctx.
func WithClientLogger(ctx context.Context, l ClientLogger) context.Context {
	return context.WithValue(ctx, clientLoggerKey{}, l)
}

// ClientLoggerFrom returns the ClientLogger attached to ctx, if any.
func ClientLoggerFrom(ctx context.Context) (ClientLogger, bool) {
	l, ok := ctx.Value(clientLoggerKey{}).(ClientLogger)
	return l, ok && l != nil
}

// SlogLevel maps an MCP level onto the closest slog level.
func SlogLevel(level mcp.LoggingLevel) slog.Level {
	switch level {
	case mcp.LoggingLevelDebug:
		return slog.LevelDebug
	case mcp.LoggingLevelInfo, mcp.LoggingLevelNotice:
		return slog.LevelInfo
	case mcp.LoggingLevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
