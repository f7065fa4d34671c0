package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ggoodman/resend-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/resend-mcp-go/internal/logctx"
	"github.com/ggoodman/resend-mcp-go/mcp"
)

var (
	// ErrAlreadyInitialized is reported when a client repeats initialize on
	// a connection that has already completed the handshake.
	ErrAlreadyInitialized = errors.New("session already initialized")
	// ErrNotInitialized is reported for requests that arrive before
	// initialize.
	ErrNotInitialized = errors.New("session not initialized")
	// ErrNoNotifier is returned by Notify when no transport is connected.
	ErrNoNotifier = errors.New("no notifier connected")
)

// Notifier delivers server-initiated messages to the client side of a
// connection. Transports implement it and attach it with Server.Connect.
type Notifier interface {
	Notify(ctx context.Context, msg *jsonrpc.Request) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, msg *jsonrpc.Request) error

func (f NotifierFunc) Notify(ctx context.Context, msg *jsonrpc.Request) error { return f(ctx, msg) }

// ToolObserver is told about every completed tool call. Outcome is one of
// "ok", "tool_error", "cancelled" or "unknown_tool".
type ToolObserver func(tool, outcome string, elapsed time.Duration)

// Option configures a Server.
type Option func(*Server)

// WithServerInfo sets the implementation info reported during initialize.
func WithServerInfo(info mcp.ImplementationInfo) Option {
	return func(s *Server) { s.info = info }
}

// WithInstructions sets human-readable instructions returned during initialize.
func WithInstructions(instr string) Option {
	return func(s *Server) { s.instructions = instr }
}

// WithToolsContainer sets the tools the server exposes.
func WithToolsContainer(tc *ToolsContainer) Option {
	return func(s *Server) { s.tools = tc }
}

// WithLogger sets the process logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithToolObserver registers a callback invoked after each tool call.
func WithToolObserver(fn ToolObserver) Option {
	return func(s *Server) { s.observe = fn }
}

// WithLogLevel sets the initial minimum level for client log notifications.
func WithLogLevel(level mcp.LoggingLevel) Option {
	return func(s *Server) {
		if mcp.IsValidLoggingLevel(level) {
			s.logLevel = level
		}
	}
}

// Server is the protocol state for one client connection. It is safe for
// concurrent use: requests on the same connection may be handled in
// parallel.
type Server struct {
	info         mcp.ImplementationInfo
	instructions string
	tools        *ToolsContainer
	log          *slog.Logger
	observe      ToolObserver

	mu              sync.RWMutex
	initialized     bool
	ready           bool
	closed          bool
	protocolVersion string
	clientInfo      mcp.ImplementationInfo
	logLevel        mcp.LoggingLevel
	notifier        Notifier

	inflightMu sync.Mutex
	inflight   map[string]context.CancelCauseFunc
}

// NewServer builds a Server using functional options.
func NewServer(opts ...Option) *Server {
	s := &Server{
		info:     mcp.ImplementationInfo{Name: "mcp-server", Version: "dev"},
		tools:    NewToolsContainer(),
		log:      slog.Default(),
		logLevel: mcp.LoggingLevelInfo,
		inflight: make(map[string]context.CancelCauseFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect attaches the transport's outbound channel. It may be called
// before or after initialize; the last call wins.
func (s *Server) Connect(n Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// Initialized reports whether the initialize handshake has completed.
func (s *Server) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Ready reports whether the client has sent notifications/initialized.
func (s *Server) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// ProtocolVersion returns the negotiated protocol version, or "" before
// initialize.
func (s *Server) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocolVersion
}

// Tools returns the server's tool registry.
func (s *Server) Tools() *ToolsContainer { return s.tools }

// Close cancels every in-flight tool call and detaches the notifier.
// Subsequent requests fail with an internal error. Close is idempotent.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.notifier = nil
	s.mu.Unlock()

	s.inflightMu.Lock()
	for id, cancel := range s.inflight {
		cancel(errors.New("server closed"))
		delete(s.inflight, id)
	}
	s.inflightMu.Unlock()
}

// HandleRequest dispatches a JSON-RPC request and always returns a response.
func (s *Server) HandleRequest(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: req.ID.String(), Type: "request"})

	s.mu.RLock()
	closed, initialized := s.closed, s.initialized
	s.mu.RUnlock()

	if closed {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "server closed", nil)
	}

	switch mcp.Method(req.Method) {
	case mcp.InitializeMethod:
		return s.handleInitialize(ctx, req)
	case mcp.PingMethod:
		return s.result(ctx, req, &mcp.EmptyResult{})
	}

	if !initialized {
		s.log.InfoContext(ctx, "server.handle_request.invalid", slog.String("err", ErrNotInitialized.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, ErrNotInitialized.Error(), nil)
	}

	switch mcp.Method(req.Method) {
	case mcp.ToolsListMethod:
		return s.handleToolsList(ctx, req)
	case mcp.ToolsCallMethod:
		return s.handleToolCall(ctx, req)
	case mcp.LoggingSetLevelMethod:
		return s.handleSetLoggingLevel(ctx, req)
	}

	s.log.InfoContext(ctx, "server.handle_request.unsupported")
	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "method not found: "+req.Method, nil)
}

// HandleNotification processes a client notification. Unknown
// notifications are ignored.
func (s *Server) HandleNotification(ctx context.Context, note *jsonrpc.Request) {
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: note.Method, Type: "notification"})

	switch mcp.Method(note.Method) {
	case mcp.InitializedNotificationMethod:
		s.mu.Lock()
		s.ready = true
		s.mu.Unlock()
		s.log.InfoContext(ctx, "server.session.ready")
	case mcp.CancelledNotificationMethod:
		var params struct {
			RequestID jsonrpc.RequestID `json:"requestId"`
			Reason    string            `json:"reason,omitempty"`
		}
		if err := json.Unmarshal(note.Params, &params); err != nil {
			s.log.InfoContext(ctx, "server.handle_notification.invalid", slog.String("err", err.Error()))
			return
		}
		if s.cancelInFlight(params.RequestID.String(), params.Reason) {
			s.log.InfoContext(ctx, "server.request.cancelled", slog.String("request_id", params.RequestID.String()))
		}
	default:
		s.log.DebugContext(ctx, "server.handle_notification.ignored")
	}
}

func (s *Server) handleInitialize(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	var params mcp.InitializeRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.log.InfoContext(ctx, "server.handle_request.invalid", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
	}

	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		s.log.InfoContext(ctx, "server.handle_request.invalid", slog.String("err", ErrAlreadyInitialized.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, ErrAlreadyInitialized.Error(), nil)
	}
	s.initialized = true
	s.protocolVersion = mcp.NegotiateProtocolVersion(params.ProtocolVersion)
	s.clientInfo = params.ClientInfo
	version := s.protocolVersion
	s.mu.Unlock()

	res := &mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities: mcp.ServerCapabilities{
			Logging: &struct{}{},
			Tools: &struct {
				ListChanged bool `json:"listChanged"`
			}{},
		},
		ServerInfo:   s.info,
		Instructions: s.instructions,
	}

	s.log.InfoContext(ctx, "server.session.initialize",
		slog.String("client_name", params.ClientInfo.Name),
		slog.String("client_version", params.ClientInfo.Version),
		slog.String("protocol_version", version),
	)

	return s.result(ctx, req, res)
}

func (s *Server) handleToolsList(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	var params mcp.ListToolsRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.log.InfoContext(ctx, "server.handle_request.invalid", slog.String("err", err.Error()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
		}
	}
	return s.result(ctx, req, s.tools.ListTools(params.Cursor))
}

func (s *Server) handleToolCall(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	start := time.Now()

	var params mcp.CallToolRequestReceived
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		s.log.InfoContext(ctx, "server.handle_request.invalid", slog.String("err", "missing tool name"))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
	}

	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: params.Name})

	reqID := req.ID.String()
	toolCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(context.Canceled)

	s.inflightMu.Lock()
	if _, exists := s.inflight[reqID]; exists {
		s.inflightMu.Unlock()
		s.log.ErrorContext(ctx, "server.handle_request.fail", slog.String("err", "duplicate request ID"))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, "duplicate request id", nil)
	}
	s.inflight[reqID] = cancel
	s.inflightMu.Unlock()
	defer func() {
		s.inflightMu.Lock()
		delete(s.inflight, reqID)
		s.inflightMu.Unlock()
	}()

	toolCtx = WithClientLogger(toolCtx, sessionLogger{s: s})

	res, err := s.tools.Call(toolCtx, &params)
	elapsed := time.Since(start)
	switch {
	case errors.Is(err, ErrUnknownTool):
		s.observeTool(params.Name, "unknown_tool", elapsed)
		s.log.InfoContext(ctx, "tool.call.unknown")
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, err.Error(), nil)
	case err != nil && toolCtx.Err() != nil:
		s.observeTool(params.Name, "cancelled", elapsed)
		s.log.InfoContext(ctx, "tool.call.cancelled", slog.String("cause", context.Cause(toolCtx).Error()), slog.Int64("dur_ms", elapsed.Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "cancelled", nil)
	case err != nil:
		s.log.WarnContext(ctx, "tool.call.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", elapsed.Milliseconds()))
		res = Errorf("%s failed: %v", params.Name, err)
	}

	if res == nil {
		res = Errorf("%s returned no result", params.Name)
	}
	outcome := "ok"
	if res.IsError {
		outcome = "tool_error"
	}
	s.observeTool(params.Name, outcome, elapsed)
	s.log.InfoContext(ctx, "tool.call.ok", slog.Bool("is_error", res.IsError), slog.Int64("dur_ms", elapsed.Milliseconds()))

	return s.result(ctx, req, res)
}

func (s *Server) handleSetLoggingLevel(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	var params mcp.SetLevelRequest
	if err := json.Unmarshal(req.Params, &params); err != nil || !mcp.IsValidLoggingLevel(params.Level) {
		s.log.InfoContext(ctx, "server.handle_request.invalid", slog.String("err", ErrInvalidLoggingLevel.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, ErrInvalidLoggingLevel.Error(), nil)
	}

	s.mu.Lock()
	s.logLevel = params.Level
	s.mu.Unlock()

	return s.result(ctx, req, &mcp.EmptyResult{})
}

func (s *Server) result(ctx context.Context, req *jsonrpc.Request, v any) *jsonrpc.Response {
	res, err := jsonrpc.NewResultResponse(req.ID, v)
	if err != nil {
		s.log.ErrorContext(ctx, "server.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}
	return res
}

func (s *Server) observeTool(name, outcome string, elapsed time.Duration) {
	if s.observe != nil {
		s.observe(name, outcome, elapsed)
	}
}

func (s *Server) cancelInFlight(reqID, reason string) bool {
	if reqID == "" {
		return false
	}
	if reason == "" {
		reason = "cancelled by client"
	}
	s.inflightMu.Lock()
	cancel, ok := s.inflight[reqID]
	s.inflightMu.Unlock()
	if ok {
		cancel(errors.New(reason))
	}
	return ok
}

// Log sends a notifications/message to the client if level is at or above
// the level the client asked for with logging/setLevel.
func (s *Server) Log(ctx context.Context, level mcp.LoggingLevel, logger string, data any) error {
	s.mu.RLock()
	threshold, n := s.logLevel, s.notifier
	s.mu.RUnlock()

	if !level.AtLeast(threshold) {
		return nil
	}
	if n == nil {
		return ErrNoNotifier
	}

	note, err := jsonrpc.NewNotification(string(mcp.LoggingMessageNotificationMethod), &mcp.LoggingMessageNotification{
		Level:  level,
		Logger: logger,
		Data:   data,
	})
	if err != nil {
		return err
	}
	if err := n.Notify(ctx, note); err != nil {
		return fmt.Errorf("notify client: %w", err)
	}
	return nil
}

type sessionLogger struct{ s *Server }

func (l sessionLogger) Log(ctx context.Context, level mcp.LoggingLevel, data any) error {
	logger := ""
	if td, ok := logctx.ToolCallDataFrom(ctx); ok {
		logger = td.ToolName
	}
	l.s.log.Log(ctx, SlogLevel(level), "client.log", slog.Any("data", data))
	err := l.s.Log(ctx, level, logger, data)
	if errors.Is(err, ErrNoNotifier) {
		return nil
	}
	return err
}
