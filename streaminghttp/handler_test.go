package streaminghttp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ggoodman/resend-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/resend-mcp-go/internal/metrics"
	"github.com/ggoodman/resend-mcp-go/internal/resendtest"
	"github.com/ggoodman/resend-mcp-go/mcp"
	"github.com/ggoodman/resend-mcp-go/resend"
	"github.com/ggoodman/resend-mcp-go/resendtools"
	"github.com/ggoodman/resend-mcp-go/sessions"
)

type harness struct {
	fake    *resendtest.Fake
	metrics *metrics.Metrics
	h       *Handler
	srv     *httptest.Server
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	fake := resendtest.New(t)
	m := metrics.New()
	base := []Option{
		WithClientFactory(func(credential string) *resend.Client { return fake.Client(credential) }),
		WithToolOptions(resendtools.Options{SenderEmail: "sender@example.com"}),
		WithMetrics(m),
	}
	h := New(append(base, opts...)...)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		// Open event streams end once their sessions are drained.
		_ = h.Shutdown(context.Background())
		srv.Close()
	})
	return &harness{fake: fake, metrics: m, h: h, srv: srv}
}

type reply struct {
	status int
	header http.Header
	body   []byte
}

type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Error   *jsonrpc.Error  `json:"error"`
	ID      json.RawMessage `json:"id"`
}

func (r reply) envelope(t *testing.T) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(r.body, &env); err != nil {
		t.Fatalf("decode envelope %q: %v", r.body, err)
	}
	if env.JSONRPC != "2.0" || env.Error == nil || string(env.ID) != "null" {
		t.Fatalf("malformed error envelope: %s", r.body)
	}
	return env
}

func (r reply) response(t *testing.T) *jsonrpc.Response {
	t.Helper()
	var res jsonrpc.Response
	if err := json.Unmarshal(r.body, &res); err != nil {
		t.Fatalf("decode response %q: %v", r.body, err)
	}
	return &res
}

// send performs one request without failing the test, so it is safe to use
// from worker goroutines.
func (hs *harness) send(ctx context.Context, method, sessionID, bearer string, body any, header map[string]string) (reply, error) {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return reply{}, fmt.Errorf("marshal body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, hs.srv.URL+"/mcp", rd)
	if err != nil {
		return reply{}, err
	}
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		req.Header.Set(mcpSessionIDHeader, sessionID)
	}
	if bearer != "" {
		req.Header.Set(authorizationHeader, bearer)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	res, err := hs.srv.Client().Do(req)
	if err != nil {
		return reply{}, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return reply{}, err
	}
	return reply{status: res.StatusCode, header: res.Header, body: b}, nil
}

func (hs *harness) do(t *testing.T, method, sessionID, bearer string, body any, header map[string]string) reply {
	t.Helper()
	r, err := hs.send(t.Context(), method, sessionID, bearer, body, header)
	if err != nil {
		t.Fatalf("%s /mcp: %v", method, err)
	}
	return r
}

func (hs *harness) post(t *testing.T, sessionID, bearer string, body any) reply {
	t.Helper()
	return hs.do(t, http.MethodPost, sessionID, bearer, body, nil)
}

func rpc(id any, method string, params any) map[string]any {
	m := map[string]any{"jsonrpc": "2.0", "method": method}
	if id != nil {
		m["id"] = id
	}
	if params != nil {
		m["params"] = params
	}
	return m
}

func initializeMessage() map[string]any {
	return rpc(1, string(mcp.InitializeMethod), map[string]any{
		"protocolVersion": mcp.LatestProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0"},
	})
}

// initialize opens a session with credential and returns its id.
func (hs *harness) initialize(t *testing.T, credential string) string {
	t.Helper()
	r := hs.post(t, "", "Bearer "+credential, initializeMessage())
	if r.status != http.StatusOK {
		t.Fatalf("initialize: want status 200, got %d: %s", r.status, r.body)
	}
	sid := r.header.Get(mcpSessionIDHeader)
	if sid == "" {
		t.Fatalf("initialize: missing %s header", mcpSessionIDHeader)
	}
	if res := r.response(t); res.Error != nil {
		t.Fatalf("initialize: unexpected error %+v", res.Error)
	}
	if r := hs.post(t, sid, "", rpc(nil, string(mcp.InitializedNotificationMethod), nil)); r.status != http.StatusAccepted {
		t.Fatalf("initialized notification: want status 202, got %d", r.status)
	}
	return sid
}

func (hs *harness) callTool(t *testing.T, sessionID, name string, args any) *mcp.CallToolResult {
	t.Helper()
	r := hs.post(t, sessionID, "", rpc(name, string(mcp.ToolsCallMethod), map[string]any{"name": name, "arguments": args}))
	if r.status != http.StatusOK {
		t.Fatalf("%s: want status 200, got %d: %s", name, r.status, r.body)
	}
	res := r.response(t)
	if res.Error != nil {
		t.Fatalf("%s: unexpected JSON-RPC error %+v", name, res.Error)
	}
	var out mcp.CallToolResult
	if err := json.Unmarshal(res.Result, &out); err != nil {
		t.Fatalf("%s: decode result: %v", name, err)
	}
	return &out
}

func TestInitializeMintsFreshSessionIDs(t *testing.T) {
	hs := newHarness(t)

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		sid := hs.initialize(t, "re_alpha")
		if seen[sid] {
			t.Fatalf("session id %s was reused", sid)
		}
		seen[sid] = true
	}
	if got := hs.h.Registry().Len(); got != 5 {
		t.Fatalf("want 5 registered sessions, got %d", got)
	}
	want := `
# HELP resend_mcp_sessions_created_total Sessions registered after a successful initialize.
# TYPE resend_mcp_sessions_created_total counter
resend_mcp_sessions_created_total 5
`
	if err := testutil.GatherAndCompare(hs.metrics.Registry(), strings.NewReader(want), "resend_mcp_sessions_created_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestInitializeResponseCarriesProtocolVersion(t *testing.T) {
	hs := newHarness(t)

	r := hs.post(t, "", "Bearer re_alpha", initializeMessage())
	if got := r.header.Get(mcpProtocolVersionHeader); got != mcp.LatestProtocolVersion {
		t.Fatalf("want protocol version %q, got %q", mcp.LatestProtocolVersion, got)
	}
	var result mcp.InitializeResult
	if err := json.Unmarshal(r.response(t).Result, &result); err != nil {
		t.Fatalf("decode initialize result: %v", err)
	}
	if result.ServerInfo.Name != resendtools.ServerName {
		t.Fatalf("want server name %q, got %q", resendtools.ServerName, result.ServerInfo.Name)
	}
}

func TestRequestWithoutSessionIsBadRequest(t *testing.T) {
	hs := newHarness(t)

	for _, msg := range []map[string]any{
		rpc(1, string(mcp.ToolsListMethod), nil),
		rpc(nil, string(mcp.InitializedNotificationMethod), nil),
		// initialize is only recognized as a request, never as a notification.
		rpc(nil, string(mcp.InitializeMethod), map[string]any{}),
	} {
		r := hs.post(t, "", "Bearer re_alpha", msg)
		if r.status != http.StatusBadRequest {
			t.Fatalf("%v: want status 400, got %d", msg["method"], r.status)
		}
		env := r.envelope(t)
		if env.Error.Code != jsonrpc.ErrorCodeServerError || env.Error.Message != msgNoSession {
			t.Fatalf("want -32000 %q, got %d %q", msgNoSession, env.Error.Code, env.Error.Message)
		}
	}
	if got := hs.h.Registry().Len(); got != 0 {
		t.Fatalf("want no sessions, got %d", got)
	}
	if n := len(hs.fake.Requests()); n != 0 {
		t.Fatalf("want no upstream calls, got %d", n)
	}
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	hs := newHarness(t)

	for _, method := range []string{http.MethodPost, http.MethodGet, http.MethodDelete} {
		var body any
		if method == http.MethodPost {
			body = rpc(1, string(mcp.ToolsListMethod), nil)
		}
		r := hs.do(t, method, "does-not-exist", "", body, nil)
		if r.status != http.StatusNotFound {
			t.Fatalf("%s: want status 404, got %d", method, r.status)
		}
		env := r.envelope(t)
		if env.Error.Code != jsonrpc.ErrorCodeSessionNotFound || env.Error.Message != msgUnknownSession {
			t.Fatalf("%s: want -32001 %q, got %d %q", method, msgUnknownSession, env.Error.Code, env.Error.Message)
		}
	}
}

func TestInitializeWithoutValidBearerIsUnauthorized(t *testing.T) {
	hs := newHarness(t)

	created := 0
	hs.h.newClient = func(credential string) *resend.Client {
		created++
		return hs.fake.Client(credential)
	}

	for _, auth := range []string{
		"",
		"Bearer",
		"Bearer ",
		"Bearer    ",
		"Bearer\tre_alpha",
		"Basic cmVfYWxwaGE6",
		"re_alpha",
	} {
		r := hs.post(t, "", auth, initializeMessage())
		if r.status != http.StatusUnauthorized {
			t.Fatalf("Authorization %q: want status 401, got %d", auth, r.status)
		}
		env := r.envelope(t)
		if env.Error.Code != jsonrpc.ErrorCodeServerError || env.Error.Message != msgUnauthorized {
			t.Fatalf("Authorization %q: want -32000 %q, got %d %q", auth, msgUnauthorized, env.Error.Code, env.Error.Message)
		}
		if got := r.header.Get(wwwAuthenticateHeader); got != `Bearer realm="resend-mcp"` {
			t.Fatalf("want WWW-Authenticate challenge, got %q", got)
		}
		if r.header.Get(mcpSessionIDHeader) != "" {
			t.Fatalf("Authorization %q: a session id was issued", auth)
		}
	}
	if got := hs.h.Registry().Len(); got != 0 {
		t.Fatalf("want registry unchanged, got %d sessions", got)
	}
	if created != 0 {
		t.Fatalf("want no client constructed, got %d", created)
	}
	want := `
# HELP resend_mcp_transport_rejections_total HTTP requests rejected by the transport before reaching a session.
# TYPE resend_mcp_transport_rejections_total counter
resend_mcp_transport_rejections_total{reason="unauthorized"} 7
`
	if err := testutil.GatherAndCompare(hs.metrics.Registry(), strings.NewReader(want), "resend_mcp_transport_rejections_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestBearerCredential(t *testing.T) {
	cases := []struct {
		header string
		want   string
		err    error
	}{
		{header: "Bearer re_123", want: "re_123"},
		{header: "Bearer   re_123  ", want: "re_123"},
		{header: "", err: ErrUnauthorized},
		{header: "Bearer", err: ErrUnauthorized},
		{header: "Bearer \t ", err: ErrUnauthorized},
		{header: "bearer re_123", want: "re_123"},
		{header: "BEARER re_123", want: "re_123"},
		{header: "Token re_123", err: ErrUnauthorized},
		{header: "Bearerre_123", err: ErrUnauthorized},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		if tc.header != "" {
			r.Header.Set(authorizationHeader, tc.header)
		}
		got, err := bearerCredential(r)
		if !errors.Is(err, tc.err) {
			t.Fatalf("%q: want err %v, got %v", tc.header, tc.err, err)
		}
		if got != tc.want {
			t.Fatalf("%q: want %q, got %q", tc.header, tc.want, got)
		}
	}
}

func TestShutdownBeforeServeReturnsPromptly(t *testing.T) {
	h := New()
	if err := h.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	done := make(chan error, 1)
	go func() { done <- h.Serve(ln) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("want nil from Serve after Shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve kept running after Shutdown")
	}

	if _, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second); err == nil {
		t.Fatalf("want listener closed, but dial succeeded")
	}
}

func TestFailedHandshakeRegistersNothing(t *testing.T) {
	hs := newHarness(t)

	r := hs.post(t, "", "Bearer re_alpha", rpc(1, string(mcp.InitializeMethod), "not an object"))
	if r.status != http.StatusBadRequest {
		t.Fatalf("want status 400, got %d: %s", r.status, r.body)
	}
	if res := r.response(t); res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeInvalidParams {
		t.Fatalf("want invalid params error, got %s", r.body)
	}
	if r.header.Get(mcpSessionIDHeader) != "" {
		t.Fatalf("failed handshake issued a session id")
	}
	if got := hs.h.Registry().Len(); got != 0 {
		t.Fatalf("want no sessions, got %d", got)
	}
}

func TestMalformedMessages(t *testing.T) {
	hs := newHarness(t)

	cases := []struct {
		name   string
		body   string
		ctype  string
		status int
		code   jsonrpc.ErrorCode
	}{
		{name: "batch", body: `[` + mustJSON(t, initializeMessage()) + `]`, ctype: "application/json", status: http.StatusBadRequest, code: jsonrpc.ErrorCodeInvalidRequest},
		{name: "garbage", body: `{"jsonrpc":`, ctype: "application/json", status: http.StatusBadRequest, code: jsonrpc.ErrorCodeParseError},
		{name: "wrong version", body: `{"jsonrpc":"1.0","id":1,"method":"ping"}`, ctype: "application/json", status: http.StatusBadRequest, code: jsonrpc.ErrorCodeParseError},
		{name: "media type", body: mustJSON(t, initializeMessage()), ctype: "text/plain", status: http.StatusUnsupportedMediaType, code: jsonrpc.ErrorCodeServerError},
	}
	for _, tc := range cases {
		r := hs.do(t, http.MethodPost, "", "Bearer re_alpha", tc.body, map[string]string{"Content-Type": tc.ctype})
		if r.status != tc.status {
			t.Fatalf("%s: want status %d, got %d", tc.name, tc.status, r.status)
		}
		if env := r.envelope(t); env.Error.Code != tc.code {
			t.Fatalf("%s: want code %d, got %d", tc.name, tc.code, env.Error.Code)
		}
	}
	if got := hs.h.Registry().Len(); got != 0 {
		t.Fatalf("want no sessions, got %d", got)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestSessionLifecycle(t *testing.T) {
	hs := newHarness(t)

	s1 := hs.initialize(t, "secretA")

	r := hs.post(t, s1, "", rpc(2, string(mcp.ToolsListMethod), nil))
	if r.status != http.StatusOK {
		t.Fatalf("tools/list: want status 200, got %d", r.status)
	}
	var list mcp.ListToolsResult
	if err := json.Unmarshal(r.response(t).Result, &list); err != nil {
		t.Fatalf("decode tools/list: %v", err)
	}
	if len(list.Tools) == 0 {
		t.Fatalf("want a non-empty tool catalog")
	}

	if r := hs.do(t, http.MethodDelete, s1, "", nil, nil); r.status != http.StatusNoContent {
		t.Fatalf("delete: want status 204, got %d", r.status)
	}
	if _, ok := hs.h.Registry().Lookup(s1); ok {
		t.Fatalf("session %s still registered after delete", s1)
	}

	r = hs.post(t, s1, "", rpc(3, string(mcp.ToolsListMethod), nil))
	if r.status != http.StatusNotFound {
		t.Fatalf("after delete: want status 404, got %d", r.status)
	}
	if r := hs.do(t, http.MethodDelete, s1, "", nil, nil); r.status != http.StatusNotFound {
		t.Fatalf("second delete: want status 404, got %d", r.status)
	}
}

func TestClosedChannelIsRemoved(t *testing.T) {
	hs := newHarness(t)

	sid := hs.initialize(t, "secretA")
	sess, ok := hs.h.Registry().Lookup(sid)
	if !ok {
		t.Fatalf("session %s not registered", sid)
	}
	_ = sess.Channel.Close()
	_ = sess.Channel.Close()

	r := hs.post(t, sid, "", rpc(2, string(mcp.ToolsListMethod), nil))
	if r.status != http.StatusNotFound {
		t.Fatalf("want status 404 after channel close, got %d", r.status)
	}
}

func TestSessionsUseTheirOwnCredential(t *testing.T) {
	hs := newHarness(t)

	s1 := hs.initialize(t, "secretA")
	s2 := hs.initialize(t, "secretB")
	if s1 == s2 {
		t.Fatalf("want distinct session ids, got %s twice", s1)
	}

	send := func(sid, subject string) {
		res := hs.callTool(t, sid, "send-email", map[string]any{
			"to":      []string{"ada@example.com"},
			"subject": subject,
			"text":    "hello",
		})
		if res.IsError {
			t.Errorf("send-email on %s: unexpected tool error", sid)
		}
	}
	send(s1, "from-A")
	send(s2, "from-B")
	send(s1, "from-A")

	keys := hs.fake.KeysFor(http.MethodPost, "/emails")
	if got, want := strings.Join(keys, ","), "secretA,secretB,secretA"; got != want {
		t.Fatalf("want upstream keys %s, got %s", want, got)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		for sid, subject := range map[string]string{s1: "from-A", s2: "from-B"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				msg := rpc(fmt.Sprintf("%s-%d", subject, i), string(mcp.ToolsCallMethod), map[string]any{
					"name":      "send-email",
					"arguments": map[string]any{"to": []string{"ada@example.com"}, "subject": subject, "text": "hello"},
				})
				r, err := hs.send(t.Context(), http.MethodPost, sid, "", msg, nil)
				if err == nil && r.status != http.StatusOK {
					err = fmt.Errorf("status %d", r.status)
				}
				if err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent send-email: %v", err)
	}

	wantKey := map[string]string{"from-A": "secretA", "from-B": "secretB"}
	for _, req := range hs.fake.Requests() {
		var body struct {
			Subject string `json:"subject"`
		}
		if err := json.Unmarshal(req.Body, &body); err != nil {
			t.Fatalf("decode upstream body: %v", err)
		}
		if req.APIKey != wantKey[body.Subject] {
			t.Fatalf("subject %q reached upstream with key %q", body.Subject, req.APIKey)
		}
	}
}

func TestToolFailureKeepsSessionUsable(t *testing.T) {
	hs := newHarness(t)

	sid := hs.initialize(t, resendtest.RejectedKey)

	res := hs.callTool(t, sid, "send-email", map[string]any{
		"to":      []string{"ada@example.com"},
		"subject": "hi",
		"text":    "hello",
	})
	if !res.IsError {
		t.Fatalf("want tool error for a rejected credential")
	}
	if len(res.Content) == 0 || !strings.HasPrefix(res.Content[0].Text, "send-email failed:") {
		t.Fatalf("unexpected tool error content: %+v", res.Content)
	}

	r := hs.post(t, sid, "", rpc(9, string(mcp.PingMethod), nil))
	if r.status != http.StatusOK {
		t.Fatalf("ping after tool failure: want status 200, got %d", r.status)
	}
}

func TestProtocolVersionMismatch(t *testing.T) {
	hs := newHarness(t)
	sid := hs.initialize(t, "re_alpha")

	r := hs.do(t, http.MethodPost, sid, "", rpc(2, string(mcp.PingMethod), nil), map[string]string{
		mcpProtocolVersionHeader: "1999-01-01",
	})
	if r.status != http.StatusBadRequest {
		t.Fatalf("want status 400, got %d", r.status)
	}
	if _, ok := hs.h.Registry().Lookup(sid); !ok {
		t.Fatalf("a rejected request must not end the session")
	}
}

func TestResponseAsEventStream(t *testing.T) {
	hs := newHarness(t)
	sid := hs.initialize(t, "re_alpha")

	r := hs.do(t, http.MethodPost, sid, "", rpc(2, string(mcp.PingMethod), nil), map[string]string{
		"Accept": "text/event-stream",
	})
	if r.status != http.StatusOK {
		t.Fatalf("want status 200, got %d", r.status)
	}
	if ct := r.header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("want text/event-stream, got %q", ct)
	}
	body := string(r.body)
	if !strings.HasPrefix(body, "data: ") || !strings.HasSuffix(body, "\n\n") {
		t.Fatalf("want a single SSE event, got %q", body)
	}
	var res jsonrpc.Response
	if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(body, "data: "))), &res); err != nil {
		t.Fatalf("decode event payload: %v", err)
	}
	if res.Error != nil || res.ID.String() != "2" {
		t.Fatalf("unexpected ping response: %+v", res)
	}
}

func TestEventStreamRelaysNotifications(t *testing.T) {
	hs := newHarness(t)
	sid := hs.initialize(t, "re_alpha")

	sess, ok := hs.h.Registry().Lookup(sid)
	if !ok {
		t.Fatalf("session %s not registered", sid)
	}
	if err := sess.Server.Log(t.Context(), mcp.LoggingLevelWarning, "test", "quota nearly exhausted"); err != nil {
		t.Fatalf("log: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, hs.srv.URL+"/mcp", nil)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(mcpSessionIDHeader, sid)
	req.Header.Set(lastEventIDHeader, "0")
	res, err := hs.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /mcp: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("want status 200, got %d", res.StatusCode)
	}

	sc := bufio.NewScanner(res.Body)
	var data string
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	if !strings.Contains(data, string(mcp.LoggingMessageNotificationMethod)) || !strings.Contains(data, "quota nearly exhausted") {
		t.Fatalf("unexpected event payload %q", data)
	}

	if r := hs.do(t, http.MethodDelete, sid, "", nil, nil); r.status != http.StatusNoContent {
		t.Fatalf("delete: want status 204, got %d", r.status)
	}
	for sc.Scan() {
	}
	if ctx.Err() != nil {
		t.Fatalf("stream did not end after delete")
	}
}

func TestEventStreamRequiresAccept(t *testing.T) {
	hs := newHarness(t)
	sid := hs.initialize(t, "re_alpha")

	r := hs.do(t, http.MethodGet, sid, "", nil, map[string]string{"Accept": "application/json"})
	if r.status != http.StatusNotAcceptable {
		t.Fatalf("want status 406, got %d", r.status)
	}
}

type failingChannel struct {
	id     string
	closed chan struct{}
	once   sync.Once
}

func (c *failingChannel) SessionID() string { return c.id }

func (c *failingChannel) Close() error {
	c.once.Do(func() { close(c.closed) })
	return fmt.Errorf("channel %s refused to close", c.id)
}

// Done never fires, so only the drain can remove this session.
func (c *failingChannel) Done() <-chan struct{} { return nil }

func TestShutdownDrainsEverySession(t *testing.T) {
	hs := newHarness(t)

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, hs.initialize(t, fmt.Sprintf("re_%d", i)))
	}
	bad := &failingChannel{id: "bad", closed: make(chan struct{})}
	if err := hs.h.Registry().Create("bad", &sessions.Session{ID: "bad", Channel: bad}); err != nil {
		t.Fatalf("register failing session: %v", err)
	}
	if got := hs.h.Registry().Len(); got != 4 {
		t.Fatalf("want 4 sessions, got %d", got)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	if err := hs.h.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if got := hs.h.Registry().Len(); got != 0 {
		t.Fatalf("want empty registry after shutdown, got %d", got)
	}
	select {
	case <-bad.closed:
	default:
		t.Fatalf("failing channel was never asked to close")
	}
	for _, id := range ids {
		if r := hs.post(t, id, "", rpc(1, string(mcp.PingMethod), nil)); r.status != http.StatusNotFound {
			t.Fatalf("session %s: want status 404 after shutdown, got %d", id, r.status)
		}
	}

	r := hs.post(t, "", "Bearer re_late", initializeMessage())
	if r.status != http.StatusServiceUnavailable {
		t.Fatalf("initialize during shutdown: want status 503, got %d", r.status)
	}
	if got := hs.h.Registry().Len(); got != 0 {
		t.Fatalf("initialize during shutdown registered a session")
	}
}

type bearerRoundTripper struct {
	base       http.RoundTripper
	credential string
}

func (rt bearerRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set(authorizationHeader, "Bearer "+rt.credential)
	return rt.base.RoundTrip(r)
}

func TestGoSDKClientInterop(t *testing.T) {
	hs := newHarness(t)
	ctx := t.Context()

	client := sdk.NewClient(&sdk.Implementation{Name: "interop", Version: "0.0.0"}, &sdk.ClientOptions{})
	transport := &sdk.StreamableClientTransport{
		Endpoint:   hs.srv.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearerRoundTripper{base: http.DefaultTransport, credential: "re_sdk"}},
	}
	cs, err := client.Connect(ctx, transport, &sdk.ClientSessionOptions{})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer cs.Close()

	if got := cs.InitializeResult().ServerInfo.Name; got != resendtools.ServerName {
		t.Fatalf("want server %q, got %q", resendtools.ServerName, got)
	}

	res, err := cs.CallTool(ctx, &sdk.CallToolParams{
		Name:      "get-email",
		Arguments: map[string]any{"id": "email_7"},
	})
	if err != nil {
		t.Fatalf("CallTool get-email failed: %v", err)
	}
	if res.IsError || len(res.Content) == 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	text, ok := res.Content[0].(*sdk.TextContent)
	if !ok || !strings.Contains(text.Text, "Email email_7") {
		t.Fatalf("unexpected content: %+v", res.Content[0])
	}
	if keys := hs.fake.KeysFor(http.MethodGet, "/emails/email_7"); len(keys) != 1 || keys[0] != "re_sdk" {
		t.Fatalf("want upstream key re_sdk, got %v", keys)
	}
}
