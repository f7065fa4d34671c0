package memoryhost

import (
	"context"
	"testing"

	"github.com/ggoodman/resend-mcp-go/sessions"
	"github.com/ggoodman/resend-mcp-go/sessions/sessionhosttest"
)

func TestMemorySessionHost(t *testing.T) {
	sessionhosttest.RunSessionHostTests(t, func(t *testing.T) sessions.Host {
		return New()
	})
}

func TestBacklogIsBounded(t *testing.T) {
	h := New(WithBacklog(2))
	ctx := context.Background()
	var ids []string
	for _, m := range []string{"a", "b", "c"} {
		id, err := h.PublishSession(ctx, "s", []byte(m))
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
		ids = append(ids, id)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var got []string
	err := h.SubscribeSession(ctx, "s", "0", func(ctx context.Context, id string, msg []byte) error {
		got = append(got, string(msg))
		if id == ids[2] {
			cancel()
		}
		return nil
	})
	if err != context.Canceled {
		t.Fatalf("subscribe: %v", err)
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("want [b c], got %v", got)
	}
}

func TestInvalidEventID(t *testing.T) {
	h := New()
	err := h.SubscribeSession(context.Background(), "s", "not-a-number", func(context.Context, string, []byte) error { return nil })
	if err == nil {
		t.Fatalf("want error for malformed event id")
	}
}
