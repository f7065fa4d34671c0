package sessionhosttest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ggoodman/resend-mcp-go/internal/jsonrpc"
	"github.com/ggoodman/resend-mcp-go/sessions"
)

// HostFactory creates a new Host instance for testing.
type HostFactory func(t *testing.T) sessions.Host

// RunSessionHostTests runs the Host contract suite against the provided factory.
func RunSessionHostTests(t *testing.T, factory HostFactory) {
	t.Run("LiveNotificationReachesSubscriber", func(t *testing.T) { testLiveDelivery(t, factory(t)) })
	t.Run("ReconnectResumesAfterLastEventID", func(t *testing.T) { testResume(t, factory(t)) })
	t.Run("SessionsDoNotSeeEachOther", func(t *testing.T) { testIsolation(t, factory(t)) })
	t.Run("ContextEndsSubscription", func(t *testing.T) { testContextEnds(t, factory(t)) })
	t.Run("HandlerErrorEndsSubscription", func(t *testing.T) { testHandlerError(t, factory(t)) })
	t.Run("CleanupEndsSubscription", func(t *testing.T) { testCleanup(t, factory(t)) })
	t.Run("PublishOrderIsKept", func(t *testing.T) { testOrder(t, factory(t)) })
}

// sessionID returns a fresh id so suites sharing a backend never collide.
func sessionID() string { return uuid.NewString() }

// logNotification encodes the kind of message a channel publishes: a
// notifications/message carrying one log line.
func logNotification(t *testing.T, text string) []byte {
	t.Helper()
	note, err := jsonrpc.NewNotification("notifications/message", map[string]any{"level": "info", "data": text})
	if err != nil {
		t.Fatalf("build notification: %v", err)
	}
	b, err := json.Marshal(note)
	if err != nil {
		t.Fatalf("encode notification: %v", err)
	}
	return b
}

func logText(t *testing.T, msg []byte) string {
	t.Helper()
	var note struct {
		Method string `json:"method"`
		Params struct {
			Data string `json:"data"`
		} `json:"params"`
	}
	if err := json.Unmarshal(msg, &note); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
	if note.Method != "notifications/message" {
		t.Fatalf("want notifications/message, got %q", note.Method)
	}
	return note.Params.Data
}

type delivery struct {
	eventID string
	msg     []byte
}

// collector subscribes in the background and stops once it has seen want
// messages.
type collector struct {
	mu   sync.Mutex
	got  []delivery
	done chan error
}

func collect(ctx context.Context, h sessions.Host, sid, lastEventID string, want int) *collector {
	ctx, cancel := context.WithCancel(ctx)
	c := &collector{done: make(chan error, 1)}
	go func() {
		defer cancel()
		c.done <- h.SubscribeSession(ctx, sid, lastEventID, func(_ context.Context, id string, msg []byte) error {
			c.mu.Lock()
			c.got = append(c.got, delivery{eventID: id, msg: msg})
			n := len(c.got)
			c.mu.Unlock()
			if n == want {
				cancel()
			}
			return nil
		})
	}()
	return c
}

func (c *collector) wait(t *testing.T) []delivery {
	t.Helper()
	select {
	case err := <-c.done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("subscribe: want context.Canceled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("subscription did not finish")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]delivery(nil), c.got...)
}

// settle gives a background subscriber time to attach before publishing.
func settle() { time.Sleep(100 * time.Millisecond) }

func testLiveDelivery(t *testing.T, h sessions.Host) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sid := sessionID()

	c := collect(ctx, h, sid, "", 1)
	settle()

	evID, err := h.PublishSession(ctx, sid, logNotification(t, "email queued"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if evID == "" {
		t.Fatalf("want a non-empty event id")
	}

	got := c.wait(t)
	if len(got) != 1 {
		t.Fatalf("want 1 message, got %d", len(got))
	}
	if got[0].eventID != evID {
		t.Fatalf("want event id %s, got %s", evID, got[0].eventID)
	}
	if text := logText(t, got[0].msg); text != "email queued" {
		t.Fatalf("want %q, got %q", "email queued", text)
	}
}

func testResume(t *testing.T, h sessions.Host) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sid := sessionID()

	first, err := h.PublishSession(ctx, sid, logNotification(t, "first"))
	if err != nil {
		t.Fatalf("publish first: %v", err)
	}
	second, err := h.PublishSession(ctx, sid, logNotification(t, "second"))
	if err != nil {
		t.Fatalf("publish second: %v", err)
	}

	got := collect(ctx, h, sid, first, 1).wait(t)
	if len(got) != 1 || got[0].eventID != second {
		t.Fatalf("want only event %s after %s, got %+v", second, first, got)
	}
	if text := logText(t, got[0].msg); text != "second" {
		t.Fatalf("want %q, got %q", "second", text)
	}
}

func testIsolation(t *testing.T, h sessions.Host) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, b := sessionID(), sessionID()

	ca := collect(ctx, h, a, "", 2)
	cb := collect(ctx, h, b, "", 1)
	settle()

	for _, p := range []struct{ sid, text string }{{a, "a1"}, {b, "b1"}, {a, "a2"}} {
		if _, err := h.PublishSession(ctx, p.sid, logNotification(t, p.text)); err != nil {
			t.Fatalf("publish %s: %v", p.text, err)
		}
	}

	for name, tc := range map[string]struct {
		c    *collector
		want []string
	}{
		"a": {ca, []string{"a1", "a2"}},
		"b": {cb, []string{"b1"}},
	} {
		got := tc.c.wait(t)
		if len(got) != len(tc.want) {
			t.Fatalf("session %s: want %d messages, got %d", name, len(tc.want), len(got))
		}
		for i, d := range got {
			if text := logText(t, d.msg); text != tc.want[i] {
				t.Fatalf("session %s message %d: want %q, got %q", name, i, tc.want[i], text)
			}
		}
	}
}

func testContextEnds(t *testing.T, h sessions.Host) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := h.SubscribeSession(ctx, sessionID(), "", func(context.Context, string, []byte) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want context.DeadlineExceeded, got %v", err)
	}
}

func testHandlerError(t *testing.T, h sessions.Host) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sid := sessionID()
	errWrite := errors.New("client went away")

	done := make(chan error, 1)
	go func() {
		done <- h.SubscribeSession(ctx, sid, "", func(context.Context, string, []byte) error { return errWrite })
	}()
	settle()
	if _, err := h.PublishSession(ctx, sid, logNotification(t, "x")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, errWrite) {
			t.Fatalf("want handler error, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("subscription did not stop on handler error")
	}
}

func testCleanup(t *testing.T, h sessions.Host) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sid := sessionID()

	done := make(chan error, 1)
	go func() {
		done <- h.SubscribeSession(ctx, sid, "", func(context.Context, string, []byte) error { return nil })
	}()
	settle()

	if err := h.CleanupSession(ctx, sid); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("want nil after cleanup, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("subscription did not end after cleanup")
	}
}

func testOrder(t *testing.T, h sessions.Host) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sid := sessionID()
	const n = 10

	c := collect(ctx, h, sid, "", n)
	settle()
	for i := range n {
		if _, err := h.PublishSession(ctx, sid, logNotification(t, fmt.Sprint(i))); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	for i, d := range c.wait(t) {
		if text := logText(t, d.msg); text != fmt.Sprint(i) {
			t.Fatalf("message %d out of order: got %s", i, text)
		}
	}
}
