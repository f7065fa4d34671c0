package memoryhost

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ggoodman/resend-mcp-go/sessions"
)

// DefaultBacklog is the number of messages retained per session for resume.
const DefaultBacklog = 256

type message struct {
	seq  int64
	data []byte
}

type stream struct {
	messages []message
	// wake is closed and replaced on every publish.
	wake chan struct{}
	gone chan struct{}
}

func newStream() *stream {
	return &stream{wake: make(chan struct{}), gone: make(chan struct{})}
}

// Host is an in-memory sessions.Host.
type Host struct {
	mu      sync.Mutex
	streams map[string]*stream
	seq     int64
	backlog int
}

// Option configures a Host.
type Option func(*Host)

// WithBacklog bounds the number of retained messages per session.
func WithBacklog(n int) Option {
	return func(h *Host) {
		if n > 0 {
			h.backlog = n
		}
	}
}

// New returns an empty Host.
func New(opts ...Option) *Host {
	h := &Host{streams: make(map[string]*stream), backlog: DefaultBacklog}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ sessions.Host = (*Host)(nil)

func (h *Host) streamLocked(sessionID string) *stream {
	s, ok := h.streams[sessionID]
	if !ok {
		s = newStream()
		h.streams[sessionID] = s
	}
	return s
}

// PublishSession appends data to the session stream. Event ids are decimal
// sequence numbers, unique across the host.
func (h *Host) PublishSession(ctx context.Context, sessionID string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.streamLocked(sessionID)
	h.seq++
	s.messages = append(s.messages, message{seq: h.seq, data: append([]byte(nil), data...)})
	if over := len(s.messages) - h.backlog; over > 0 {
		s.messages = append(s.messages[:0:0], s.messages[over:]...)
	}
	close(s.wake)
	s.wake = make(chan struct{})
	return strconv.FormatInt(h.seq, 10), nil
}

// SubscribeSession delivers messages with a sequence greater than
// lastEventID, or only future messages when lastEventID is empty.
func (h *Host) SubscribeSession(ctx context.Context, sessionID string, lastEventID string, handler sessions.MessageHandlerFunction) error {
	h.mu.Lock()
	s := h.streamLocked(sessionID)
	var after int64
	if lastEventID == "" {
		after = h.seq
	} else {
		n, err := strconv.ParseInt(lastEventID, 10, 64)
		if err != nil {
			h.mu.Unlock()
			return fmt.Errorf("memoryhost: invalid event id %q: %w", lastEventID, err)
		}
		after = n
	}
	h.mu.Unlock()

	for {
		h.mu.Lock()
		var pending []message
		for _, m := range s.messages {
			if m.seq > after {
				pending = append(pending, m)
			}
		}
		wake := s.wake
		h.mu.Unlock()

		for _, m := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := handler(ctx, strconv.FormatInt(m.seq, 10), m.data); err != nil {
				return err
			}
			after = m.seq
		}
		if len(pending) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.gone:
			return nil
		case <-wake:
		}
	}
}

// CleanupSession drops the session stream and ends its subscriptions.
func (h *Host) CleanupSession(ctx context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.streams[sessionID]; ok {
		close(s.gone)
		delete(h.streams, sessionID)
	}
	return nil
}
