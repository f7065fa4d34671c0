// Package stdio implements the single-connection MCP transport over
// stdin/stdout. It is what a desktop client spawns as a subprocess.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Auth             : none; the credential is fixed at process start
//	Sessions         : exactly one, implicit, for the life of the process
//	Transport        : newline-delimited JSON-RPC
//
// Example:
//
//	client := resend.NewClient(os.Getenv("RESEND_API_KEY"))
//	srv := resendtools.NewServer(client, resendtools.Options{})
//	h := stdio.NewHandler(srv)
//	if err := h.Serve(ctx); err != nil { log.Fatal(err) }
//
// For multi-tenant deployments use the streaminghttp transport, which binds
// a separate credential to every session.
package stdio
