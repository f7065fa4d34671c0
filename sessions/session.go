package sessions

import (
	"github.com/ggoodman/resend-mcp-go/mcpservice"
)

// Channel is the transport side of a session: whatever carries messages
// between one client and its server instance.
type Channel interface {
	// SessionID returns the id the channel was minted with.
	SessionID() string
	// Close tears the channel down. Calling Close more than once is safe.
	Close() error
	// Done is closed once the channel has been closed, by either side.
	Done() <-chan struct{}
}

// Session pairs a dedicated server instance with its transport channel.
// Each session owns its own upstream client through the server's tools; no
// state is shared between sessions.
type Session struct {
	ID      string
	Server  *mcpservice.Server
	Channel Channel
	// KeyHint is a masked form of the session's credential, for logs only.
	KeyHint string
}
