// Package streaminghttp serves the multi-tenant Streamable HTTP transport.
//
// Every session is created by an initialize request carrying
// "Authorization: Bearer <RESEND_API_KEY>". The credential is turned into a
// dedicated Resend client and a dedicated protocol server, and the pair is
// only registered once the initialize handshake succeeds. Later requests
// carry the minted Mcp-Session-Id header and are routed to that pair; the
// credential is never consulted again and never shared.
//
// Routing is a pure decision over three inputs (session header present,
// session known, request is initialize):
//
//	POST without session header, initialize      create
//	POST without session header, anything else   400 / -32000
//	any method with a known session              continue
//	any method with an unknown session           404 / -32001
//
// GET opens a Server-Sent Events stream carrying server-to-client
// notifications from the configured sessions.Host. DELETE closes the
// session. Shutdown drains every session before the listener stops.
//
//	h := streaminghttp.New(
//	    streaminghttp.WithLogger(log),
//	    streaminghttp.WithToolOptions(resendtools.Options{SenderEmail: "me@example.com"}),
//	)
//	go h.Serve(ln)
//	...
//	_ = h.Shutdown(ctx)
package streaminghttp
