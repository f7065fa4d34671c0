// Package resendtest provides an in-process fake of the Resend API for
// tests. It records every request it receives, including the credential
// presented, so tests can assert which key reached the upstream.
package resendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/ggoodman/resend-mcp-go/resend"
)

// RejectedKey is refused with 401 by the fake.
const RejectedKey = "re_rejected"

// Request is one recorded upstream call.
type Request struct {
	Method         string
	Path           string
	Query          string
	APIKey         string
	IdempotencyKey string
	Body           []byte
}

// Fake is a fake Resend API server.
type Fake struct {
	srv *httptest.Server
	mux *http.ServeMux
	seq atomic.Int64

	mu   sync.Mutex
	reqs []Request
}

// New starts a Fake with default routes for sending and reading email and
// for listing contacts. Tests may add or override routes with Handle.
func New(t testing.TB) *Fake {
	t.Helper()
	f := &Fake{mux: http.NewServeMux()}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)

	f.mux.HandleFunc("POST /emails", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"id": f.NextID("email")})
	})
	f.mux.HandleFunc("POST /emails/batch", func(w http.ResponseWriter, r *http.Request) {
		var reqs []json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&reqs)
		data := make([]map[string]string, len(reqs))
		for i := range reqs {
			data[i] = map[string]string{"id": f.NextID("email")}
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": data})
	})
	f.mux.HandleFunc("GET /emails/{id}", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"object":     "email",
			"id":         r.PathValue("id"),
			"from":       "sender@example.com",
			"to":         []string{"to@example.com"},
			"subject":    "hello",
			"last_event": "delivered",
			"created_at": time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339),
		})
	})
	f.mux.HandleFunc("GET /contacts", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"object":   "list",
			"has_more": false,
			"data": []map[string]any{
				{"object": "contact", "id": "c_1", "email": "ada@example.com", "first_name": "Ada", "created_at": time.Now().UTC().Format(time.RFC3339)},
			},
		})
	})
	return f
}

// URL is the base URL of the fake.
func (f *Fake) URL() string { return f.srv.URL }

// Handle registers h for an http.ServeMux pattern such as "GET /domains/{id}".
func (f *Fake) Handle(pattern string, h http.HandlerFunc) {
	f.mux.HandleFunc(pattern, h)
}

// NextID returns a fresh id with the given prefix.
func (f *Fake) NextID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, f.seq.Add(1))
}

// Client returns a resend.Client for key pointed at the fake, with rate
// limiting disabled and fast retries.
func (f *Fake) Client(key string, opts ...resend.Option) *resend.Client {
	base := []resend.Option{
		resend.WithBaseURL(f.srv.URL),
		resend.WithRateLimit(rate.Inf, 1),
		resend.WithRetries(1, time.Millisecond),
	}
	return resend.NewClient(key, append(base, opts...)...)
}

// Requests returns a copy of every request received so far.
func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.reqs...)
}

// KeysFor returns the API keys presented on requests to path, in order.
func (f *Fake) KeysFor(method, path string) []string {
	var keys []string
	for _, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			keys = append(keys, r.APIKey)
		}
	}
	return keys
}

func (f *Fake) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()
	key := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	f.mu.Lock()
	f.reqs = append(f.reqs, Request{
		Method:         r.Method,
		Path:           r.URL.Path,
		Query:          r.URL.RawQuery,
		APIKey:         key,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Body:           body,
	})
	f.mu.Unlock()

	if key == "" || key == RejectedKey {
		WriteError(w, http.StatusUnauthorized, "validation_error", "API key is invalid")
		return
	}

	r.Body = io.NopCloser(strings.NewReader(string(body)))
	if _, pattern := f.mux.Handler(r); pattern == "" {
		WriteError(w, http.StatusNotFound, "not_found", "The requested endpoint does not exist.")
		return
	}
	f.mux.ServeHTTP(w, r)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an error body in the Resend format.
func WriteError(w http.ResponseWriter, status int, name, message string) {
	WriteJSON(w, status, map[string]any{"statusCode": status, "name": name, "message": message})
}
