// Package resendtools exposes the Resend API as MCP tools.
//
// NewServer builds a fresh mcpservice.Server whose tools close over one
// *resend.Client. Every session gets its own server and therefore its own
// credential; nothing is shared between servers except the immutable
// Options.
//
// Upstream failures are reported as tool errors ("<tool> failed: ...") so a
// rejected call never tears down the session.
package resendtools
