package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/resend-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/resend-mcp-go/internal/logctx"
	"github.com/ggoodman/resend-mcp-go/mcpservice"
)

// ErrAlreadyServing is returned by a second call to Serve.
var ErrAlreadyServing = errors.New("stdio: handler is already serving")

var _ mcpservice.Notifier = (*Handler)(nil)

// Handler is a single-connection stdio transport that reads JSON-RPC messages
// from an io.Reader and writes responses to an io.Writer. By default, it uses
// os.Stdin and os.Stdout.
//
// The handler is transport-only; it delegates all MCP semantics to the one
// mcpservice.Server it was built with.
type Handler struct {
	srv *mcpservice.Server
	r   io.Reader
	w   io.Writer
	l   *slog.Logger

	wmu     sync.Mutex
	serving atomic.Bool
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(srv *mcpservice.Server, opts ...Option) *Handler {
	h := &Handler{
		srv: srv,
		r:   os.Stdin,
		w:   os.Stdout,
		l:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Server returns the protocol server bound to this connection.
func (h *Handler) Server() *mcpservice.Server { return h.srv }

// Notify writes a server-initiated message straight to the output stream.
func (h *Handler) Notify(ctx context.Context, msg *jsonrpc.Request) error {
	return h.writeJSONRPC(msg)
}

func (h *Handler) writeJSONRPC(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	h.wmu.Lock()
	defer h.wmu.Unlock()
	if _, err := h.w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

type line struct {
	data []byte
	err  error
}

// Serve runs the stdio event loop until EOF on the reader or the context is
// canceled; both end with a nil error. Requests are handled concurrently and
// Serve waits for in-flight requests before returning. It may be called at
// most once per Handler.
func (h *Handler) Serve(ctx context.Context) error {
	if !h.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: "stdio", Transport: "stdio"})
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.srv.Connect(h)
	defer h.srv.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	lines := make(chan line)
	go func() {
		br := bufio.NewReader(h.r)
		for {
			b, err := br.ReadBytes('\n')
			if len(b) > 0 {
				select {
				case lines <- line{data: b}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				select {
				case lines <- line{err: err}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	h.l.InfoContext(ctx, "stdio.serve.start")
	for {
		var ln line
		select {
		case <-ctx.Done():
			h.l.InfoContext(ctx, "stdio.serve.done", slog.String("reason", context.Cause(ctx).Error()))
			return nil
		case ln = <-lines:
		}

		if ln.err != nil {
			if errors.Is(ln.err, io.EOF) || errors.Is(ln.err, io.ErrClosedPipe) {
				h.l.InfoContext(ctx, "stdio.serve.eof")
				return nil
			}
			return fmt.Errorf("stdio: read: %w", ln.err)
		}

		data := bytes.TrimSpace(ln.data)
		if len(data) == 0 {
			continue
		}
		h.dispatch(ctx, &wg, data)
	}
}

func (h *Handler) dispatch(ctx context.Context, wg *sync.WaitGroup, data []byte) {
	if data[0] == '[' {
		h.writeError(ctx, jsonrpc.ErrorCodeInvalidRequest, "Invalid Request: batch messages are not supported")
		return
	}

	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.l.WarnContext(ctx, "jsonrpc.message.invalid", slog.String("err", err.Error()))
		h.writeError(ctx, jsonrpc.ErrorCodeParseError, "Parse error: "+err.Error())
		return
	}

	switch msg.Type() {
	case "request":
		req := msg.AsRequest()
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := h.srv.HandleRequest(ctx, req)
			if err := h.writeJSONRPC(res); err != nil {
				h.l.ErrorContext(ctx, "rpc.response.write.fail", slog.String("err", err.Error()))
			}
		}()
	case "notification":
		h.srv.HandleNotification(ctx, msg.AsRequest())
	default:
		h.l.InfoContext(ctx, "response.inbound.drop", slog.String("id", msg.ID.String()))
	}
}

func (h *Handler) writeError(ctx context.Context, code jsonrpc.ErrorCode, msg string) {
	if err := h.writeJSONRPC(jsonrpc.NewErrorEnvelope(code, msg)); err != nil {
		h.l.ErrorContext(ctx, "rpc.response.write.fail", slog.String("err", err.Error()))
	}
}
