package resendtools

import (
	"strings"

	"github.com/ggoodman/resend-mcp-go/mcp"
	"github.com/ggoodman/resend-mcp-go/mcpservice"
	"github.com/ggoodman/resend-mcp-go/resend"
)

// ServerName is reported in the initialize result.
const ServerName = "resend-mcp"

// Version is the server version reported in the initialize result.
var Version = "dev"

const instructions = "Tools for the Resend email platform: send and schedule email, " +
	"manage contacts, segments, topics and broadcasts, and administer domains, API keys and webhooks."

// Options are process-wide defaults applied by the email and broadcast tools.
type Options struct {
	// SenderEmail is used as "from" when a call omits it.
	SenderEmail string
	// ReplyTo is used as "reply_to" when a call omits it.
	ReplyTo []string
}

func (o Options) clone() Options {
	o.ReplyTo = append([]string(nil), o.ReplyTo...)
	return o
}

// Tools returns the full tool catalog bound to client.
func Tools(client *resend.Client, opts Options) []mcpservice.ToolDefinition {
	t := &toolset{client: client, opts: opts.clone()}
	var defs []mcpservice.ToolDefinition
	defs = append(defs, t.emailTools()...)
	defs = append(defs, t.contactTools()...)
	defs = append(defs, t.broadcastTools()...)
	defs = append(defs, t.domainTools()...)
	defs = append(defs, t.segmentTools()...)
	defs = append(defs, t.topicTools()...)
	defs = append(defs, t.contactPropertyTools()...)
	defs = append(defs, t.apiKeyTools()...)
	defs = append(defs, t.webhookTools()...)
	return defs
}

// NewServer returns a new protocol server exposing Tools(client, opts).
// Additional options are applied after the defaults.
func NewServer(client *resend.Client, opts Options, serverOpts ...mcpservice.Option) *mcpservice.Server {
	base := []mcpservice.Option{
		mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: ServerName, Version: Version}),
		mcpservice.WithInstructions(instructions),
		mcpservice.WithToolsContainer(mcpservice.NewToolsContainer(Tools(client, opts)...)),
	}
	return mcpservice.NewServer(append(base, serverOpts...)...)
}

type toolset struct {
	client *resend.Client
	opts   Options
}

func (t *toolset) sender(from string) string {
	if s := strings.TrimSpace(from); s != "" {
		return s
	}
	return t.opts.SenderEmail
}

func (t *toolset) replyTo(v []string) []string {
	if len(v) > 0 {
		return v
	}
	return append([]string(nil), t.opts.ReplyTo...)
}
