package resendtools

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/ggoodman/resend-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/resend-mcp-go/internal/resendtest"
	"github.com/ggoodman/resend-mcp-go/mcp"
	"github.com/ggoodman/resend-mcp-go/mcpservice"
)

func request(t *testing.T, id any, method string, params any) *jsonrpc.Request {
	t.Helper()
	b, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return &jsonrpc.Request{JSONRPCVersion: jsonrpc.ProtocolVersion, Method: method, Params: b, ID: jsonrpc.NewRequestID(id)}
}

func newInitializedServer(t *testing.T, fake *resendtest.Fake, key string, opts Options) *mcpservice.Server {
	t.Helper()
	srv := NewServer(fake.Client(key), opts)
	res := srv.HandleRequest(context.Background(), request(t, 0, string(mcp.InitializeMethod), mcp.InitializeRequest{
		ProtocolVersion: mcp.LatestProtocolVersion,
		ClientInfo:      mcp.ImplementationInfo{Name: "test", Version: "0"},
	}))
	if res.Error != nil {
		t.Fatalf("initialize: %+v", res.Error)
	}
	return srv
}

func call(t *testing.T, srv *mcpservice.Server, name string, args any) *mcp.CallToolResult {
	t.Helper()
	raw, _ := json.Marshal(args)
	res := srv.HandleRequest(context.Background(), request(t, name, string(mcp.ToolsCallMethod), map[string]any{
		"name":      name,
		"arguments": json.RawMessage(raw),
	}))
	if res.Error != nil {
		t.Fatalf("%s: JSON-RPC error %+v", name, res.Error)
	}
	var out mcp.CallToolResult
	if err := json.Unmarshal(res.Result, &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return &out
}

func text(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}

func TestCatalogNamesAreUniqueAndComplete(t *testing.T) {
	defs := Tools(nil, Options{})
	seen := map[string]bool{}
	for _, d := range defs {
		if seen[d.Descriptor.Name] {
			t.Fatalf("duplicate tool %s", d.Descriptor.Name)
		}
		seen[d.Descriptor.Name] = true
		if d.Descriptor.Description == "" {
			t.Fatalf("tool %s has no description", d.Descriptor.Name)
		}
		if d.Descriptor.InputSchema.Type != "object" {
			t.Fatalf("tool %s schema type = %q", d.Descriptor.Name, d.Descriptor.InputSchema.Type)
		}
	}
	for _, name := range []string{
		"send-email", "send-batch-emails", "get-email", "list-emails", "update-email", "cancel-email",
		"create-contact", "get-contact", "list-contacts", "update-contact", "remove-contact",
		"create-broadcast", "get-broadcast", "list-broadcasts", "update-broadcast", "send-broadcast", "remove-broadcast",
		"create-domain", "get-domain", "list-domains", "update-domain", "verify-domain", "remove-domain",
		"create-segment", "get-segment", "list-segments", "remove-segment",
		"create-topic", "get-topic", "list-topics", "update-topic", "remove-topic",
		"create-contact-property", "get-contact-property", "list-contact-properties", "update-contact-property", "remove-contact-property",
		"create-api-key", "list-api-keys", "remove-api-key",
		"create-webhook", "get-webhook", "list-webhooks", "update-webhook", "remove-webhook",
	} {
		if !seen[name] {
			t.Errorf("missing tool %s", name)
		}
	}
}

func TestSendEmailSchemaRequiresOnlyRecipientAndSubject(t *testing.T) {
	for _, d := range Tools(nil, Options{}) {
		if d.Descriptor.Name != "send-email" {
			continue
		}
		req := d.Descriptor.InputSchema.Required
		if len(req) != 2 || req[0] != "to" || req[1] != "subject" {
			t.Fatalf("want required [to subject], got %v", req)
		}
		if _, ok := d.Descriptor.InputSchema.Properties["from"]; !ok {
			t.Fatalf("from should be an optional property")
		}
		return
	}
	t.Fatal("send-email not found")
}

func TestSendEmailUsesDefaults(t *testing.T) {
	fake := resendtest.New(t)
	srv := newInitializedServer(t, fake, "re_alpha", Options{
		SenderEmail: "default@example.com",
		ReplyTo:     []string{"support@example.com"},
	})

	res := call(t, srv, "send-email", map[string]any{
		"to":      []string{"ada@example.com"},
		"subject": "hi",
		"text":    "hello",
	})
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", text(res))
	}
	if !strings.Contains(text(res), "Email ID: email_") {
		t.Fatalf("result missing email id: %s", text(res))
	}

	reqs := fake.Requests()
	if len(reqs) != 1 {
		t.Fatalf("want 1 upstream request, got %d", len(reqs))
	}
	var body map[string]any
	if err := json.Unmarshal(reqs[0].Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["from"] != "default@example.com" {
		t.Fatalf("from = %v", body["from"])
	}
	if rt, _ := body["reply_to"].([]any); len(rt) != 1 || rt[0] != "support@example.com" {
		t.Fatalf("reply_to = %v", body["reply_to"])
	}
	if reqs[0].APIKey != "re_alpha" {
		t.Fatalf("upstream saw key %q", reqs[0].APIKey)
	}
	if reqs[0].IdempotencyKey == "" {
		t.Fatalf("expected an idempotency key on send")
	}
}

func TestSendEmailWithoutSenderIsToolError(t *testing.T) {
	fake := resendtest.New(t)
	srv := newInitializedServer(t, fake, "re_alpha", Options{})

	res := call(t, srv, "send-email", map[string]any{
		"to":      []string{"ada@example.com"},
		"subject": "hi",
		"text":    "hello",
	})
	if !res.IsError {
		t.Fatalf("expected tool error, got %s", text(res))
	}
	if n := len(fake.Requests()); n != 0 {
		t.Fatalf("no upstream call expected, got %d", n)
	}
}

func TestUpstreamRejectionIsToolError(t *testing.T) {
	fake := resendtest.New(t)
	srv := newInitializedServer(t, fake, resendtest.RejectedKey, Options{SenderEmail: "a@example.com"})

	res := call(t, srv, "send-email", map[string]any{
		"to":      []string{"ada@example.com"},
		"subject": "hi",
		"text":    "hello",
	})
	if !res.IsError {
		t.Fatalf("expected tool error for rejected key")
	}
	if got := text(res); !strings.HasPrefix(got, "send-email failed:") || !strings.Contains(got, "API key is invalid") {
		t.Fatalf("unexpected error text: %s", got)
	}

	// The session keeps working after a failed call.
	res = call(t, srv, "send-email", map[string]any{"subject": "missing recipients"})
	if !res.IsError {
		t.Fatalf("expected argument error")
	}
}

func TestSendBatchRejectsOversizedBatch(t *testing.T) {
	fake := resendtest.New(t)
	srv := newInitializedServer(t, fake, "re_alpha", Options{SenderEmail: "a@example.com"})

	emails := make([]map[string]any, maxBatchSize+1)
	for i := range emails {
		emails[i] = map[string]any{"to": []string{"x@example.com"}, "subject": "s", "text": "t"}
	}
	res := call(t, srv, "send-batch-emails", map[string]any{"emails": emails})
	if !res.IsError {
		t.Fatalf("expected tool error for oversized batch")
	}

	res = call(t, srv, "send-batch-emails", map[string]any{"emails": emails[:3]})
	if res.IsError {
		t.Fatalf("unexpected error: %s", text(res))
	}
	if !strings.HasPrefix(text(res), "Sent 3 emails:") {
		t.Fatalf("unexpected text: %s", text(res))
	}
}

func TestGetEmailRendersRelativeTime(t *testing.T) {
	fake := resendtest.New(t)
	srv := newInitializedServer(t, fake, "re_alpha", Options{})

	res := call(t, srv, "get-email", map[string]any{"id": "email_42"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", text(res))
	}
	got := text(res)
	if !strings.Contains(got, "Email email_42") || !strings.Contains(got, "Created: 2 hours ago") {
		t.Fatalf("unexpected rendering: %s", got)
	}
}

func TestListContactsWithPagination(t *testing.T) {
	fake := resendtest.New(t)
	srv := newInitializedServer(t, fake, "re_alpha", Options{})

	res := call(t, srv, "list-contacts", map[string]any{"limit": 5, "after": "c_0"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", text(res))
	}
	if !strings.Contains(text(res), "Ada <ada@example.com>") {
		t.Fatalf("unexpected rendering: %s", text(res))
	}
	reqs := fake.Requests()
	if len(reqs) != 1 || reqs[0].Query != "after=c_0&limit=5" {
		t.Fatalf("unexpected upstream query: %+v", reqs)
	}

	res = call(t, srv, "list-contacts", map[string]any{"after": "a", "before": "b"})
	if !res.IsError {
		t.Fatalf("after and before together should be rejected")
	}
}

func TestRemoveDomainAndNotFound(t *testing.T) {
	fake := resendtest.New(t)
	fake.Handle("DELETE /domains/{id}", func(w http.ResponseWriter, r *http.Request) {
		resendtest.WriteJSON(w, http.StatusOK, map[string]any{"object": "domain", "id": r.PathValue("id"), "deleted": true})
	})
	srv := newInitializedServer(t, fake, "re_alpha", Options{})

	res := call(t, srv, "remove-domain", map[string]any{"id": "d_1"})
	if res.IsError || text(res) != "Removed domain d_1." {
		t.Fatalf("unexpected result: %+v", res)
	}

	res = call(t, srv, "get-domain", map[string]any{"id": "d_1"})
	if !res.IsError || !strings.HasPrefix(text(res), "get-domain failed:") {
		t.Fatalf("expected not found tool error, got %s", text(res))
	}
}

func TestCreateContactPropertyValidatesFallbackType(t *testing.T) {
	fake := resendtest.New(t)
	srv := newInitializedServer(t, fake, "re_alpha", Options{})

	res := call(t, srv, "create-contact-property", map[string]any{"key": "age", "type": "number", "fallback_value": "old"})
	if !res.IsError {
		t.Fatalf("expected type mismatch to be rejected")
	}
	if n := len(fake.Requests()); n != 0 {
		t.Fatalf("no upstream call expected, got %d", n)
	}
}

func TestServersDoNotShareCredentials(t *testing.T) {
	fake := resendtest.New(t)
	a := newInitializedServer(t, fake, "re_alpha", Options{SenderEmail: "s@example.com"})
	b := newInitializedServer(t, fake, "re_beta", Options{SenderEmail: "s@example.com"})

	args := map[string]any{"to": []string{"x@example.com"}, "subject": "s", "text": "t"}
	call(t, a, "send-email", args)
	call(t, b, "send-email", args)
	call(t, a, "send-email", args)

	keys := fake.KeysFor(http.MethodPost, "/emails")
	want := []string{"re_alpha", "re_beta", "re_alpha"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("want keys %v, got %v", want, keys)
	}
}
