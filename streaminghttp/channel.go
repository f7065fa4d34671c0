package streaminghttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ggoodman/resend-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/resend-mcp-go/mcpservice"
	"github.com/ggoodman/resend-mcp-go/sessions"
)

const cleanupTimeout = 5 * time.Second

var (
	_ sessions.Channel    = (*httpChannel)(nil)
	_ mcpservice.Notifier = (*httpChannel)(nil)
)

// httpChannel is the transport half of one HTTP session. Server-to-client
// messages are published to the session host and relayed by GET streams.
type httpChannel struct {
	id   string
	host sessions.Host
	log  *slog.Logger

	mu  sync.Mutex
	srv *mcpservice.Server

	once sync.Once
	done chan struct{}
}

func newChannel(id string, host sessions.Host, log *slog.Logger) *httpChannel {
	return &httpChannel{id: id, host: host, log: log, done: make(chan struct{})}
}

func (c *httpChannel) bind(srv *mcpservice.Server) {
	c.mu.Lock()
	c.srv = srv
	c.mu.Unlock()
	srv.Connect(c)
}

func (c *httpChannel) SessionID() string { return c.id }

func (c *httpChannel) Done() <-chan struct{} { return c.done }

// Notify publishes msg to the session stream.
func (c *httpChannel) Notify(ctx context.Context, msg *jsonrpc.Request) error {
	select {
	case <-c.done:
		return mcpservice.ErrNoNotifier
	default:
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if _, err := c.host.PublishSession(ctx, c.id, b); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close stops the server, releases the session stream and signals Done.
// Only the first call does any work.
func (c *httpChannel) Close() error {
	var err error
	c.once.Do(func() {
		defer close(c.done)

		c.mu.Lock()
		srv := c.srv
		c.mu.Unlock()
		if srv != nil {
			srv.Close()
		}

		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if cerr := c.host.CleanupSession(ctx, c.id); cerr != nil {
			err = fmt.Errorf("cleanup session stream: %w", cerr)
			c.log.Warn("session.cleanup.fail", slog.String("session_id", c.id), slog.String("err", cerr.Error()))
		}
	})
	return err
}
