package streaminghttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/ggoodman/resend-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/resend-mcp-go/internal/logctx"
	"github.com/ggoodman/resend-mcp-go/internal/metrics"
	"github.com/ggoodman/resend-mcp-go/mcpservice"
	"github.com/ggoodman/resend-mcp-go/resend"
	"github.com/ggoodman/resend-mcp-go/resendtools"
	"github.com/ggoodman/resend-mcp-go/sessions"
	"github.com/ggoodman/resend-mcp-go/sessions/memoryhost"
)

var (
	_ http.Handler = (*Handler)(nil)
)

var (
	// ErrSessionHeaderMissing marks a non-initialize request sent without Mcp-Session-Id.
	ErrSessionHeaderMissing = errors.New("missing mcp-session-id header")
	// ErrInvalidSession marks a request whose Mcp-Session-Id is not registered.
	ErrInvalidSession = errors.New("invalid mcp session")
	// ErrUnauthorized is returned by the bearer check when no usable API key was sent.
	ErrUnauthorized = errors.New("missing or malformed bearer credential")
)

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaType  = contenttype.NewMediaType("text/event-stream")
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
	responseMediaTypes    = []contenttype.MediaType{jsonMediaType, eventStreamMediaType}
)

const (
	// Use canonical header names for clarity; Go matches headers case-insensitively.
	lastEventIDHeader        = "Last-Event-ID"
	mcpSessionIDHeader       = "Mcp-Session-Id"
	mcpProtocolVersionHeader = "Mcp-Protocol-Version"
	authorizationHeader      = "Authorization"
	wwwAuthenticateHeader    = "WWW-Authenticate"
)

const (
	msgNoSession       = "Bad Request: No valid session ID provided"
	msgUnknownSession  = "Session not found"
	msgUnauthorized    = `Unauthorized: provide your Resend API key as "Authorization: Bearer <RESEND_API_KEY>"`
	msgMediaType       = "Unsupported Media Type: Content-Type must be application/json"
	msgNotAcceptable   = "Not Acceptable: Accept must include text/event-stream"
	msgBatch           = "Invalid Request: batch messages are not supported"
	msgDraining        = "Service Unavailable: server is shutting down"
	msgProtocolVersion = "Bad Request: Mcp-Protocol-Version does not match the negotiated version"
)

const (
	defaultEndpointPath = "/mcp"
	maxMessageBytes     = 10 << 20
)

// ClientFactory turns a bearer credential into an upstream client. It must
// not perform network I/O.
type ClientFactory func(credential string) *resend.Client

// ServerFactory builds one protocol server bound to client. The transport
// appends its own options (logger, tool observer) to opts.
type ServerFactory func(client *resend.Client, opts ...mcpservice.Option) *mcpservice.Server

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. Records carry the req, sess and rpc groups
// when the logger's handler is a logctx.Handler.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithServerName sets the realm advertised in WWW-Authenticate challenges.
func WithServerName(name string) Option {
	return func(h *Handler) {
		if name != "" {
			h.serverName = name
		}
	}
}

// WithEndpointPath sets the path the protocol endpoint is mounted on.
// Defaults to /mcp.
func WithEndpointPath(p string) Option {
	return func(h *Handler) {
		if p != "" {
			h.path = "/" + strings.TrimLeft(p, "/")
		}
	}
}

// WithSessionHost sets the store carrying server-to-client messages.
// Defaults to an in-process memoryhost.
func WithSessionHost(host sessions.Host) Option {
	return func(h *Handler) { h.host = host }
}

// WithMetrics records session and tool metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithMetricsPath exposes the metrics registry on the same listener. It has
// no effect without WithMetrics.
func WithMetricsPath(p string) Option {
	return func(h *Handler) { h.metricsPath = p }
}

// WithClientFactory overrides how credentials become upstream clients.
func WithClientFactory(f ClientFactory) Option {
	return func(h *Handler) { h.newClient = f }
}

// WithServerFactory overrides how protocol servers are built.
func WithServerFactory(f ServerFactory) Option {
	return func(h *Handler) { h.newServer = f }
}

// WithToolOptions sets the defaults passed to the tool catalog by the
// default server factory.
func WithToolOptions(o resendtools.Options) Option {
	return func(h *Handler) { h.toolOpts = o }
}

// Handler is the Streamable HTTP transport. It owns the session registry.
type Handler struct {
	log         *slog.Logger
	serverName  string
	path        string
	host        sessions.Host
	metrics     *metrics.Metrics
	metricsPath string
	newClient   ClientFactory
	newServer   ServerFactory
	toolOpts    resendtools.Options

	registry *sessions.Registry
	mux      *http.ServeMux

	mu       sync.Mutex
	httpSrv  *http.Server
	shutdown bool
}

// New builds a Handler with an empty session registry.
func New(opts ...Option) *Handler {
	h := &Handler{
		log:        slog.New(slog.DiscardHandler),
		serverName: resendtools.ServerName,
		path:       defaultEndpointPath,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.host == nil {
		h.host = memoryhost.New()
	}
	if h.newClient == nil {
		h.newClient = func(credential string) *resend.Client {
			return resend.NewClient(credential, resend.WithLogger(h.log))
		}
	}
	if h.newServer == nil {
		toolOpts := h.toolOpts
		h.newServer = func(client *resend.Client, opts ...mcpservice.Option) *mcpservice.Server {
			return resendtools.NewServer(client, toolOpts, opts...)
		}
	}

	h.registry = sessions.NewRegistry(sessions.WithRegistryLogger(h.log))
	h.metrics.TrackActiveSessions(h.registry.Len)

	h.mux = http.NewServeMux()
	h.mux.HandleFunc("POST "+h.path, h.handlePost)
	h.mux.HandleFunc("GET "+h.path, h.handleGet)
	h.mux.HandleFunc("DELETE "+h.path, h.handleDelete)
	if h.metrics != nil && h.metricsPath != "" {
		h.mux.Handle("GET "+h.metricsPath, h.metrics.Handler())
	}
	return h
}

// Registry returns the live session registry.
func (h *Handler) Registry() *sessions.Registry { return h.registry }

// EndpointPath returns the path the protocol endpoint is mounted on.
func (h *Handler) EndpointPath() string { return h.path }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})))
}

// Serve accepts connections on ln until Shutdown is called. It returns nil
// after a clean shutdown, including when Shutdown ran before Serve, in which
// case ln is closed without accepting anything.
func (h *Handler) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(h.log.Handler(), slog.LevelWarn),
	}
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		_ = ln.Close()
		h.log.Info("http.serve.skip", slog.String("reason", "shut down before serve"))
		return nil
	}
	h.httpSrv = srv
	h.mu.Unlock()

	h.log.Info("http.serve.start", slog.String("addr", ln.Addr().String()), slog.String("path", h.path))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown closes every session, then stops the listener and waits for
// in-flight requests. Session close failures are logged by the registry and
// never stop the drain.
func (h *Handler) Shutdown(ctx context.Context) error {
	start := time.Now()
	drainErr := h.registry.DrainAll(ctx)

	h.mu.Lock()
	h.shutdown = true
	srv := h.httpSrv
	h.mu.Unlock()

	var stopErr error
	if srv != nil {
		// Drain may have used up ctx; the listener must still stop.
		if ctx.Err() != nil {
			stopErr = srv.Close()
		} else {
			stopErr = srv.Shutdown(ctx)
		}
	}
	h.log.Info("http.shutdown.complete", slog.Duration("dur", time.Since(start)))
	return errors.Join(drainErr, stopErr)
}

// bearerCredential extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerCredential(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get(authorizationHeader), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrUnauthorized
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrUnauthorized
	}
	return token, nil
}

// writeEnvelope writes a transport-level JSON-RPC error with a null id.
func writeEnvelope(w http.ResponseWriter, status int, code jsonrpc.ErrorCode, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonrpc.NewErrorEnvelope(code, msg))
}

func (h *Handler) reject(ctx context.Context, w http.ResponseWriter, status int, code jsonrpc.ErrorCode, msg, reason string) {
	h.metrics.Rejected(reason)
	writeEnvelope(w, status, code, msg)
	h.log.InfoContext(ctx, "http.reject", slog.Int("status", status), slog.String("reason", reason))
}

// route resolves the session header against the registry.
func (h *Handler) route(r *http.Request, isInitialize bool) (action, *sessions.Session) {
	id := r.Header.Get(mcpSessionIDHeader)
	var (
		sess  *sessions.Session
		found bool
	)
	if id != "" {
		sess, found = h.registry.Lookup(id)
	}
	return decide(id != "", found, isInitialize), sess
}

// rejectRoute answers the two rejecting actions. It reports whether it
// wrote a response.
func (h *Handler) rejectRoute(ctx context.Context, w http.ResponseWriter, a action) bool {
	switch a {
	case actionRejectNoSession:
		h.log.InfoContext(ctx, "session.id.missing", slog.String("err", ErrSessionHeaderMissing.Error()))
		h.reject(ctx, w, http.StatusBadRequest, jsonrpc.ErrorCodeServerError, msgNoSession, metrics.ReasonNoSession)
		return true
	case actionRejectUnknownSession:
		h.log.InfoContext(ctx, "session.load.miss", slog.String("err", ErrInvalidSession.Error()))
		h.reject(ctx, w, http.StatusNotFound, jsonrpc.ErrorCodeSessionNotFound, msgUnknownSession, metrics.ReasonUnknownSession)
		return true
	}
	return false
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	h.log.InfoContext(ctx, "http.post.start")

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		h.reject(ctx, w, http.StatusUnsupportedMediaType, jsonrpc.ErrorCodeServerError, msgMediaType, metrics.ReasonMediaType)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		h.reject(ctx, w, http.StatusBadRequest, jsonrpc.ErrorCodeParseError, "Parse error: "+err.Error(), metrics.ReasonParseError)
		return
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		h.reject(ctx, w, http.StatusBadRequest, jsonrpc.ErrorCodeInvalidRequest, msgBatch, metrics.ReasonBatch)
		return
	}

	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.log.WarnContext(ctx, "jsonrpc.message.invalid", slog.String("err", err.Error()))
		h.reject(ctx, w, http.StatusBadRequest, jsonrpc.ErrorCodeParseError, "Parse error: "+err.Error(), metrics.ReasonParseError)
		return
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{
		Method: msg.Method,
		ID:     msg.ID.String(),
		Type:   msg.Type(),
	})

	a, sess := h.route(r, msg.IsInitialize())
	if h.rejectRoute(ctx, w, a) {
		return
	}
	switch a {
	case actionCreate:
		h.createSession(ctx, w, r, msg.AsRequest(), start)
	case actionContinue:
		h.continueSession(ctx, w, r, sess, &msg, start)
	}
}

// createSession authenticates, builds the client and server, runs the
// handshake and registers the session only if the handshake succeeds.
func (h *Handler) createSession(ctx context.Context, w http.ResponseWriter, r *http.Request, req *jsonrpc.Request, start time.Time) {
	credential, err := bearerCredential(r)
	if err != nil {
		h.log.InfoContext(ctx, "auth.fail", slog.String("err", err.Error()))
		w.Header().Set(wwwAuthenticateHeader, fmt.Sprintf("Bearer realm=%q", h.serverName))
		h.reject(ctx, w, http.StatusUnauthorized, jsonrpc.ErrorCodeServerError, msgUnauthorized, metrics.ReasonUnauthorized)
		return
	}

	client := h.newClient(credential)

	ch := newChannel(uuid.NewString(), h.host, h.log)
	keyHint := logctx.KeyHint(credential)
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: ch.id, Transport: "http", KeyHint: keyHint})

	srv := h.newServer(client,
		mcpservice.WithLogger(h.log),
		mcpservice.WithToolObserver(h.metrics.ObserveToolCall),
	)
	ch.bind(srv)

	res := srv.HandleRequest(ctx, req)
	if res.Error != nil {
		_ = ch.Close()
		h.metrics.Rejected(metrics.ReasonInitialize)
		h.log.InfoContext(ctx, "session.create.fail", slog.String("err", res.Error.Message))
		w.Header().Set("Content-Type", jsonMediaType.String())
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(res)
		return
	}

	if err := h.registry.Create(ch.id, &sessions.Session{ID: ch.id, Server: srv, Channel: ch, KeyHint: keyHint}); err != nil {
		_ = ch.Close()
		if errors.Is(err, sessions.ErrRegistryDraining) {
			h.reject(ctx, w, http.StatusServiceUnavailable, jsonrpc.ErrorCodeServerError, msgDraining, metrics.ReasonDraining)
			return
		}
		h.log.ErrorContext(ctx, "session.create.fail", slog.String("err", err.Error()))
		writeEnvelope(w, http.StatusInternalServerError, jsonrpc.ErrorCodeInternalError, "Internal error: failed to register session")
		return
	}
	h.metrics.SessionCreated()

	w.Header().Set(mcpSessionIDHeader, ch.id)
	w.Header().Set(mcpProtocolVersionHeader, srv.ProtocolVersion())
	h.writeResponse(ctx, w, r, res)
	h.log.InfoContext(ctx, "session.create.ok", slog.Duration("dur", time.Since(start)))
}

func (h *Handler) continueSession(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *sessions.Session, msg *jsonrpc.AnyMessage, start time.Time) {
	ctx = withSession(ctx, sess)
	srv := sess.Server

	if pv := r.Header.Get(mcpProtocolVersionHeader); pv != "" {
		if spv := srv.ProtocolVersion(); spv != "" && pv != spv {
			h.log.WarnContext(ctx, "protocol.version.mismatch", slog.String("client_version", pv))
			h.reject(ctx, w, http.StatusBadRequest, jsonrpc.ErrorCodeServerError, msgProtocolVersion, metrics.ReasonProtocol)
			return
		}
	}
	if spv := srv.ProtocolVersion(); spv != "" {
		w.Header().Set(mcpProtocolVersionHeader, spv)
	}

	switch msg.Type() {
	case "notification":
		srv.HandleNotification(ctx, msg.AsRequest())
		w.WriteHeader(http.StatusAccepted)
		h.log.InfoContext(ctx, "notification.inbound.ok", slog.Duration("dur", time.Since(start)))
	case "request":
		res := srv.HandleRequest(ctx, msg.AsRequest())
		h.writeResponse(ctx, w, r, res)
		h.log.InfoContext(ctx, "rpc.inbound.ok", slog.Duration("dur", time.Since(start)))
	default:
		// The server never sends requests, so there is nothing to correlate.
		w.WriteHeader(http.StatusAccepted)
		h.log.InfoContext(ctx, "response.inbound.drop")
	}
}

// writeResponse writes res as JSON, or as a single SSE event when the
// client only accepts an event stream.
func (h *Handler) writeResponse(ctx context.Context, w http.ResponseWriter, r *http.Request, res *jsonrpc.Response) {
	b, err := json.Marshal(res)
	if err != nil {
		h.log.ErrorContext(ctx, "rpc.response.marshal.fail", slog.String("err", err.Error()))
		writeEnvelope(w, http.StatusInternalServerError, jsonrpc.ErrorCodeInternalError, "Internal error: failed to encode response")
		return
	}

	mt, _, err := contenttype.GetAcceptableMediaType(r, responseMediaTypes)
	f, canFlush := w.(http.Flusher)
	if err == nil && canFlush && mt.Matches(eventStreamMediaType) {
		wf := &lockedWriteFlusher{Writer: w, Flusher: f, ctx: ctx}
		setEventStreamHeaders(w)
		w.WriteHeader(http.StatusOK)
		if err := writeSSEEvent(wf, "", b); err != nil {
			h.log.WarnContext(ctx, "sse.write.fail", slog.String("err", err.Error()))
		}
		return
	}

	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append(b, '\n')); err != nil {
		h.log.WarnContext(ctx, "rpc.response.write.fail", slog.String("err", err.Error()))
	}
}

// handleGet streams server-to-client messages for an established session.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		h.reject(ctx, w, http.StatusNotAcceptable, jsonrpc.ErrorCodeServerError, msgNotAcceptable, metrics.ReasonMediaType)
		return
	}

	a, sess := h.route(r, false)
	if h.rejectRoute(ctx, w, a) {
		return
	}
	ctx = withSession(ctx, sess)

	f, ok := w.(http.Flusher)
	if !ok {
		writeEnvelope(w, http.StatusInternalServerError, jsonrpc.ErrorCodeInternalError, "Internal error: streaming unsupported")
		h.log.ErrorContext(ctx, "sse.flusher.missing")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sess.Channel.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	wf := &lockedWriteFlusher{Writer: w, Flusher: f, ctx: ctx}
	if spv := sess.Server.ProtocolVersion(); spv != "" {
		w.Header().Set(mcpProtocolVersionHeader, spv)
	}
	setEventStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	wf.Flush()

	h.log.InfoContext(ctx, "sse.stream.start")

	err := h.host.SubscribeSession(ctx, sess.ID, r.Header.Get(lastEventIDHeader), func(cbCtx context.Context, msgID string, msg []byte) error {
		if err := writeSSEEvent(wf, msgID, msg); err != nil {
			return err
		}
		h.log.DebugContext(cbCtx, "sse.message.deliver", slog.String("event_id", msgID))
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		h.log.WarnContext(ctx, "sse.stream.fail", slog.String("err", err.Error()))
		return
	}
	h.log.InfoContext(ctx, "sse.stream.end", slog.Duration("dur", time.Since(start)))
}

// handleDelete terminates a session at the client's request.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	h.log.InfoContext(ctx, "http.delete.start")

	a, sess := h.route(r, false)
	if h.rejectRoute(ctx, w, a) {
		return
	}
	ctx = withSession(ctx, sess)

	if err := sess.Channel.Close(); err != nil {
		h.log.WarnContext(ctx, "session.close.fail", slog.String("err", err.Error()))
	}
	h.registry.Remove(sess.ID)

	w.WriteHeader(http.StatusNoContent)
	h.log.InfoContext(ctx, "http.delete.ok", slog.Duration("dur", time.Since(start)))
}

func setEventStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", eventStreamMediaType.String())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// lockedWriteFlusher wraps an io.Writer + http.Flusher with a mutex and an optional context.
// It serializes concurrent writes/flushes and avoids writing after ctx is canceled.
type lockedWriteFlusher struct {
	io.Writer
	http.Flusher
	mu  sync.Mutex
	ctx context.Context
}

func (l *lockedWriteFlusher) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx != nil && l.ctx.Err() != nil {
		return 0, l.ctx.Err()
	}
	return l.Writer.Write(p)
}

func (l *lockedWriteFlusher) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx != nil && l.ctx.Err() != nil {
		return
	}
	l.Flusher.Flush()
}

// writeSSEEvent writes one event frame and flushes it.
func writeSSEEvent(wf *lockedWriteFlusher, msgID string, payload []byte) error {
	var buf bytes.Buffer
	if msgID != "" {
		fmt.Fprintf(&buf, "id: %s\n", msgID)
	}
	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	if _, err := wf.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write SSE event: %w", err)
	}
	wf.Flush()
	return nil
}

func withSession(ctx context.Context, sess *sessions.Session) context.Context {
	return logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.ID, Transport: "http", KeyHint: sess.KeyHint})
}
