package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SessionCreated()
	m.Rejected(ReasonBatch)
	m.ObserveToolCall("send-email", "ok", time.Millisecond)
	m.TrackActiveSessions(func() int { return 1 })
}

func TestCounters(t *testing.T) {
	m := New()
	m.SessionCreated()
	m.SessionCreated()
	m.Rejected(ReasonUnauthorized)
	m.ObserveToolCall("send-email", "ok", 10*time.Millisecond)
	m.ObserveToolCall("no-such-tool", "unknown_tool", time.Millisecond)

	if got := testutil.ToFloat64(m.sessionsCreated); got != 2 {
		t.Fatalf("sessions_created_total: want 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.rejections.WithLabelValues(ReasonUnauthorized)); got != 1 {
		t.Fatalf("rejections{unauthorized}: want 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.toolCalls.WithLabelValues("unknown", "unknown_tool")); got != 1 {
		t.Fatalf("unknown tool calls should be folded into one label, got %v", got)
	}
}

func TestHandlerExposesActiveSessions(t *testing.T) {
	m := New()
	active := 3
	m.TrackActiveSessions(func() int { return active })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "resend_mcp_sessions_active 3") {
		t.Fatalf("gauge missing from exposition:\n%s", body)
	}
}
