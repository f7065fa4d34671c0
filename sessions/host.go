package sessions

import (
	"context"
)

// MessageHandlerFunction receives one message from a session stream. Returning
// an error stops the subscription and the error is returned from
// SubscribeSession.
type MessageHandlerFunction func(ctx context.Context, msgID string, msg []byte) error

// Host carries server-to-client messages for a session. Messages published
// while no subscriber is attached are retained so a client reconnecting with
// Last-Event-ID can resume.
//
// Implementations must be safe for concurrent use.
type Host interface {
	// PublishSession appends a message to the session stream and returns its
	// event id. Event ids are ordered within a session.
	PublishSession(ctx context.Context, sessionID string, data []byte) (eventID string, err error)

	// SubscribeSession delivers messages published after lastEventID (or
	// after the moment of subscription when lastEventID is empty) until ctx
	// ends, the handler fails or the session is cleaned up. A cleaned up
	// session ends the subscription with a nil error.
	SubscribeSession(ctx context.Context, sessionID string, lastEventID string, handler MessageHandlerFunction) error

	// CleanupSession discards the stream and releases any subscribers.
	CleanupSession(ctx context.Context, sessionID string) error
}
